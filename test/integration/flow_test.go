package integration

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/bathware-labs/stock-reservation-service/internal/reservation/application"
	"github.com/bathware-labs/stock-reservation-service/internal/storage/postgres"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
)

func setupStore(t *testing.T) *postgres.Store {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION to run container tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.Teardown(ctx) })

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := postgres.New(slog.New(slog.DiscardHandler), pool)
	require.NoError(t, store.CreateSchema(ctx))
	require.NoError(t, store.SeedIfEmpty(ctx))
	return store
}

func TestReservationLifecycleOnPostgres(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	coordinator := application.NewCoordinator(slog.New(slog.DiscardHandler), store)

	id, err := coordinator.Create(ctx, application.CreateInput{
		ProductSKU: "BTH-0001", CustomerName: "Alice", ReservedQuantity: 5,
	})
	require.NoError(t, err)

	p, err := store.GetProduct(ctx, "BTH-0001")
	require.NoError(t, err)
	require.Equal(t, 20, p.Quantity)

	require.NoError(t, coordinator.UpdateStatus(ctx, id, "confirmed"))
	require.NoError(t, coordinator.UpdateStatus(ctx, id, "cancelled"))

	p, err = store.GetProduct(ctx, "BTH-0001")
	require.NoError(t, err)
	require.Equal(t, 25, p.Quantity)

	require.NoError(t, coordinator.Delete(ctx, id))
	p, err = store.GetProduct(ctx, "BTH-0001")
	require.NoError(t, err)
	require.Equal(t, 25, p.Quantity)
}

// Concurrent reservations against one product must never oversell: the
// row lock serializes the availability check and the decrement.
func TestConcurrentReservationsNeverOversell(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	coordinator := application.NewCoordinator(slog.New(slog.DiscardHandler), store)

	// BTH-0003 has 10 units seeded; 20 workers each want 1.
	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = coordinator.Create(ctx, application.CreateInput{
				ProductSKU: "BTH-0003", CustomerName: "Load Test", ReservedQuantity: 1,
			})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.Equal(t, apperror.KindInsufficientStock, apperror.KindOf(err))
		}
	}
	require.Equal(t, 10, succeeded)

	p, err := store.GetProduct(ctx, "BTH-0003")
	require.NoError(t, err)
	require.Zero(t, p.Quantity)
}
