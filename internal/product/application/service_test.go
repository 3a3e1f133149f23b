package application_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bathware-labs/stock-reservation-service/internal/product/application"
	"github.com/bathware-labs/stock-reservation-service/internal/product/domain"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
)

type fakeProductStore struct {
	bySKU  map[string]domain.Product
	nextID int64
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{bySKU: map[string]domain.Product{}, nextID: 1}
}

func (s *fakeProductStore) ListProducts(context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(s.bySKU))
	for _, p := range s.bySKU {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeProductStore) GetProduct(_ context.Context, sku string) (domain.Product, error) {
	p, ok := s.bySKU[sku]
	if !ok {
		return domain.Product{}, apperror.NotFound("product not found")
	}
	return p, nil
}

func (s *fakeProductStore) InsertProduct(_ context.Context, p domain.Product) (int64, error) {
	if _, ok := s.bySKU[p.SKU]; ok {
		return 0, apperror.Conflict("sku already exists")
	}
	p.ID = s.nextID
	s.nextID++
	s.bySKU[p.SKU] = p
	return p.ID, nil
}

func (s *fakeProductStore) UpdateProduct(_ context.Context, sku string, patch domain.Patch) (int64, error) {
	p, ok := s.bySKU[sku]
	if !ok {
		return 0, apperror.NotFound("product not found")
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	s.bySKU[sku] = p
	return 1, nil
}

func (s *fakeProductStore) DeleteProduct(_ context.Context, sku string) error {
	if _, ok := s.bySKU[sku]; !ok {
		return apperror.NotFound("product not found")
	}
	delete(s.bySKU, sku)
	return nil
}

func (s *fakeProductStore) UpsertProduct(_ context.Context, p domain.Product) error {
	if existing, ok := s.bySKU[p.SKU]; ok {
		p.ID = existing.ID
	} else {
		p.ID = s.nextID
		s.nextID++
	}
	s.bySKU[p.SKU] = p
	return nil
}

func newService(store *fakeProductStore) *application.Service {
	return application.NewService(slog.New(slog.DiscardHandler), store)
}

func TestCreateRequiresSKU(t *testing.T) {
	svc := newService(newFakeProductStore())
	_, err := svc.Create(context.Background(), domain.Product{Name: "Faucet"})
	require.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))
}

func TestCreateRejectsNegativePriceAndQuantity(t *testing.T) {
	svc := newService(newFakeProductStore())

	_, err := svc.Create(context.Background(), domain.Product{SKU: "X", Price: decimal.NewFromInt(-1)})
	require.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))

	_, err = svc.Create(context.Background(), domain.Product{SKU: "X", Quantity: -1})
	require.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))
}

func TestCreateDuplicateSKU(t *testing.T) {
	store := newFakeProductStore()
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.Product{SKU: "BTH-0001", Name: "Faucet"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.Product{SKU: "BTH-0001", Name: "Another"})
	require.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestUpdateUnknownSKU(t *testing.T) {
	svc := newService(newFakeProductStore())
	name := "New name"
	_, err := svc.Update(context.Background(), "NOPE", domain.Patch{Name: &name})
	require.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestUpdateEmptyPatchIsNoop(t *testing.T) {
	store := newFakeProductStore()
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.Product{SKU: "BTH-0001", Name: "Faucet"})
	require.NoError(t, err)

	changes, err := svc.Update(ctx, "BTH-0001", domain.Patch{})
	require.NoError(t, err)
	require.Zero(t, changes)
	require.Equal(t, "Faucet", store.bySKU["BTH-0001"].Name)
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	store := newFakeProductStore()
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.Product{SKU: "BTH-0001", Name: "Faucet", Category: "Faucet", Quantity: 25})
	require.NoError(t, err)

	qty := 30
	changes, err := svc.Update(ctx, "BTH-0001", domain.Patch{Quantity: &qty})
	require.NoError(t, err)
	require.Equal(t, int64(1), changes)

	got := store.bySKU["BTH-0001"]
	require.Equal(t, 30, got.Quantity)
	require.Equal(t, "Faucet", got.Name)
	require.Equal(t, "Faucet", got.Category)
}

func TestBulkUpsertCountsBadRows(t *testing.T) {
	store := newFakeProductStore()
	svc := newService(store)

	succeeded, failed, err := svc.BulkUpsert(context.Background(), []domain.Product{
		{SKU: "BTH-0001", Name: "Faucet", Quantity: 10},
		{Name: "No SKU"},
		{SKU: "BTH-0002", Name: "Shower", Quantity: 4},
	})
	require.NoError(t, err)
	require.Equal(t, 2, succeeded)
	require.Equal(t, 1, failed)
	require.Len(t, store.bySKU, 2)
}

func TestBulkUpsertEmptyArray(t *testing.T) {
	svc := newService(newFakeProductStore())
	_, _, err := svc.BulkUpsert(context.Background(), nil)
	require.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))
}

func TestExportCSVShape(t *testing.T) {
	store := newFakeProductStore()
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.Product{
		SKU: "BTH-0001", Name: "Single-Handle Basin Faucet", Category: "Faucet",
		Price: decimal.NewFromInt(1290), Quantity: 25,
	})
	require.NoError(t, err)

	data, err := svc.ExportCSV(ctx)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, "ID,SKU,Name,Category,Price,Quantity", lines[0])
	require.Len(t, lines, 2)
	require.Equal(t, "1,BTH-0001,Single-Handle Basin Faucet,Faucet,1290,25", lines[1])
}
