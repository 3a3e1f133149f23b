// Package postgres is the remote store (Supabase or any Postgres). Each
// coordinator operation runs in one transaction with the product row taken
// FOR UPDATE, so operations on the same SKU serialize while other SKUs
// proceed in parallel.
package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	productdomain "github.com/bathware-labs/stock-reservation-service/internal/product/domain"
	"github.com/bathware-labs/stock-reservation-service/internal/reservation/application"
	reservationdomain "github.com/bathware-labs/stock-reservation-service/internal/reservation/domain"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
	"github.com/bathware-labs/stock-reservation-service/pkg/outbox"
)

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func New(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// CreateSchema bootstraps the tables. Idempotent.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		sku TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGSERIAL PRIMARY KEY,
		product_sku TEXT NOT NULL REFERENCES products (sku),
		customer_name TEXT NOT NULL,
		reserved_quantity INTEGER NOT NULL,
		sales_person TEXT NOT NULL DEFAULT '',
		discount NUMERIC(12,2) NOT NULL DEFAULT 0,
		vat NUMERIC(12,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		type TEXT NOT NULL,
		payload BYTEA,
		traceparent TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		relay_id TEXT NOT NULL DEFAULT '',
		lease_until TIMESTAMPTZ,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_status_idx ON outbox (status, id)`,
}

// Atomic runs fn in a transaction; fn's error aborts it.
func (s *Store) Atomic(ctx context.Context, fn func(tx application.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&storeTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type storeTx struct {
	tx pgx.Tx
}

func (t *storeTx) GetProductForUpdate(ctx context.Context, sku string) (productdomain.Product, error) {
	var p productdomain.Product
	err := t.tx.QueryRow(ctx,
		`SELECT id, sku, name, category, price, quantity FROM products WHERE sku=$1 FOR UPDATE`, sku).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Price, &p.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return productdomain.Product{}, apperror.NotFound("product not found")
	}
	if err != nil {
		return productdomain.Product{}, err
	}
	return p, nil
}

func (t *storeTx) AdjustProductQuantity(ctx context.Context, sku string, delta int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET quantity = quantity + $1 WHERE sku=$2`, delta, sku)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperror.NotFound("product not found")
	}
	return nil
}

func (t *storeTx) GetReservation(ctx context.Context, id int64) (reservationdomain.Reservation, error) {
	var r reservationdomain.Reservation
	err := t.tx.QueryRow(ctx, `
		SELECT id, product_sku, customer_name, reserved_quantity, sales_person, discount, vat, status, created_at, updated_at
		FROM reservations WHERE id=$1`, id).
		Scan(&r.ID, &r.ProductSKU, &r.CustomerName, &r.ReservedQuantity, &r.SalesPerson,
			&r.Discount, &r.VAT, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return reservationdomain.Reservation{}, apperror.NotFound("reservation not found")
	}
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	return r, nil
}

func (t *storeTx) InsertReservation(ctx context.Context, r reservationdomain.Reservation) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO reservations (product_sku, customer_name, reserved_quantity, sales_person, discount, vat, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		r.ProductSKU, r.CustomerName, r.ReservedQuantity, r.SalesPerson,
		r.Discount, r.VAT, string(r.Status), r.CreatedAt, r.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *storeTx) SetReservationStatus(ctx context.Context, id int64, status reservationdomain.Status) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE reservations SET status=$1, updated_at=$2 WHERE id=$3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperror.NotFound("reservation not found")
	}
	return nil
}

func (t *storeTx) SetReservationQuantity(ctx context.Context, id int64, qty int) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE reservations SET reserved_quantity=$1, updated_at=$2 WHERE id=$3`,
		qty, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperror.NotFound("reservation not found")
	}
	return nil
}

func (t *storeTx) DeleteReservation(ctx context.Context, id int64) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperror.NotFound("reservation not found")
	}
	return nil
}

func (t *storeTx) AppendEvent(ctx context.Context, rec outbox.Record) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status, created_at)
		VALUES ($1,$2,$3,$4,$5,'pending',$6)`,
		rec.AggregateType, rec.AggregateID, rec.Type, rec.Payload, rec.Traceparent, time.Now().UTC())
	return err
}

// --- reservation read side ---

const detailSelect = `
	SELECT r.id, r.product_sku, r.customer_name, r.reserved_quantity, r.sales_person,
	       r.discount, r.vat, r.status, r.created_at, r.updated_at,
	       p.name AS product_name, p.price AS product_price
	FROM reservations r
	JOIN products p ON r.product_sku = p.sku`

func scanDetail(row pgx.Row) (reservationdomain.Detail, error) {
	var d reservationdomain.Detail
	err := row.Scan(&d.ID, &d.ProductSKU, &d.CustomerName, &d.ReservedQuantity, &d.SalesPerson,
		&d.Discount, &d.VAT, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.ProductName, &d.ProductPrice)
	return d, err
}

func (s *Store) ListReservations(ctx context.Context) ([]reservationdomain.Detail, error) {
	rows, err := s.pool.Query(ctx, detailSelect+` ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]reservationdomain.Detail, 0)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (s *Store) GetReservationDetail(ctx context.Context, id int64) (reservationdomain.Detail, error) {
	d, err := scanDetail(s.pool.QueryRow(ctx, detailSelect+` WHERE r.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return reservationdomain.Detail{}, apperror.NotFound("reservation not found")
	}
	if err != nil {
		return reservationdomain.Detail{}, err
	}
	return d, nil
}

// --- product catalog ---

func (s *Store) ListProducts(ctx context.Context) ([]productdomain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, sku, name, category, price, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]productdomain.Product, 0)
	for rows.Next() {
		var p productdomain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Price, &p.Quantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, sku string) (productdomain.Product, error) {
	var p productdomain.Product
	err := s.pool.QueryRow(ctx,
		`SELECT id, sku, name, category, price, quantity FROM products WHERE sku=$1`, sku).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Price, &p.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return productdomain.Product{}, apperror.NotFound("product not found")
	}
	if err != nil {
		return productdomain.Product{}, err
	}
	return p, nil
}

func (s *Store) InsertProduct(ctx context.Context, p productdomain.Product) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, category, price, quantity)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		p.SKU, p.Name, p.Category, p.Price, p.Quantity).Scan(&id)
	if isUniqueViolation(err) {
		return 0, apperror.Conflict("sku already exists")
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateProduct(ctx context.Context, sku string, patch productdomain.Patch) (int64, error) {
	set := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+"=$"+strconv.Itoa(len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Quantity != nil {
		add("quantity", *patch.Quantity)
	}
	if len(set) == 0 {
		return 0, nil
	}
	args = append(args, sku)
	sql := `UPDATE products SET ` + strings.Join(set, ", ") + ` WHERE sku=$` + strconv.Itoa(len(args))
	ct, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() == 0 {
		return 0, apperror.NotFound("product not found")
	}
	return ct.RowsAffected(), nil
}

func (s *Store) DeleteProduct(ctx context.Context, sku string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM products WHERE sku=$1`, sku)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperror.NotFound("product not found")
	}
	return nil
}

func (s *Store) UpsertProduct(ctx context.Context, p productdomain.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (sku, name, category, price, quantity)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (sku) DO UPDATE SET name=$2, category=$3, price=$4, quantity=$5`,
		p.SKU, p.Name, p.Category, p.Price, p.Quantity)
	return err
}

// --- admin ---

type seedRow struct {
	sku, name, category string
	price               int64
	quantity            int
}

var seedProducts = []seedRow{
	{"BTH-0001", "Single-Handle Basin Faucet", "Faucet", 1290, 25},
	{"BTH-0002", "Wall-Mounted Shower Set", "Shower", 2590, 18},
	{"BTH-0003", "One-Piece Toilet 4.8L", "Toilet", 6490, 10},
	{"BTH-0004", "Pedestal Basin 50cm", "Basin", 1890, 14},
}

func (s *Store) Recreate(ctx context.Context) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS reservations`,
		`DROP TABLE IF EXISTS products`,
		schema[0],
		schema[1],
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	for _, p := range seedProducts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products (sku, name, category, price, quantity) VALUES ($1,$2,$3,$4,$5)`,
			p.sku, p.name, p.category, decimal.NewFromInt(p.price), p.quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE reservations, products RESTART IDENTITY`)
	return err
}

func (s *Store) SeedIfEmpty(ctx context.Context) error {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	s.log.Info("seeding sample products")
	for _, p := range seedProducts {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO products (sku, name, category, price, quantity) VALUES ($1,$2,$3,$4,$5)`,
			p.sku, p.name, p.category, decimal.NewFromInt(p.price), p.quantity); err != nil {
			return err
		}
	}
	return nil
}

// --- outbox relay side ---

func (s *Store) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, traceparent, created_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batchSize)
	if err != nil {
		return nil, err
	}

	var events []outbox.Event
	for rows.Next() {
		var ev outbox.Event
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &ev.Payload, &ev.Traceparent, &ev.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=$2 WHERE id = ANY($3)`,
		relayID, time.Now().UTC().Add(lease), ids); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`,
		id, errMsg)
	return err
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
