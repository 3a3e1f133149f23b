// Package integration spins up a throwaway Postgres for end-to-end tests.
// Tests in this package are skipped unless INTEGRATION is set, so the
// default test run never needs Docker.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type Env struct {
	PG     *postgres.PostgresContainer
	PGURL  string
	Cancel context.CancelFunc
}

func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("stockreserve"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		cancel()
		_ = pgC.Terminate(ctx)
		return nil, err
	}

	return &Env{PG: pgC, PGURL: pgURL, Cancel: cancel}, nil
}

func (e *Env) Teardown(ctx context.Context) {
	e.Cancel()
	_ = e.PG.Terminate(ctx)
}
