// Package sqlite is the local single-file store. SQLite has one writer at
// a time, so transaction scope alone serializes coordinator operations;
// the row-lock methods of the Tx port are plain reads here.
package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	productdomain "github.com/bathware-labs/stock-reservation-service/internal/product/domain"
	"github.com/bathware-labs/stock-reservation-service/internal/reservation/application"
	reservationdomain "github.com/bathware-labs/stock-reservation-service/internal/reservation/domain"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
	"github.com/bathware-labs/stock-reservation-service/pkg/outbox"
)

type Store struct {
	log *slog.Logger
	db  *gorm.DB
}

func Open(log *slog.Logger, path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY under concurrent writers.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&productRow{}, &reservationRow{}, &outboxRow{}); err != nil {
		return nil, err
	}
	return &Store{log: log, db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Atomic runs fn in one sqlite transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx application.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(g *gorm.DB) error {
		return fn(&storeTx{db: g})
	})
}

type storeTx struct {
	db *gorm.DB
}

func (t *storeTx) GetProductForUpdate(ctx context.Context, sku string) (productdomain.Product, error) {
	var row productRow
	err := t.db.WithContext(ctx).Where("sku = ?", sku).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return productdomain.Product{}, apperror.NotFound("product not found")
	}
	if err != nil {
		return productdomain.Product{}, err
	}
	return row.toDomain(), nil
}

func (t *storeTx) AdjustProductQuantity(ctx context.Context, sku string, delta int) error {
	res := t.db.WithContext(ctx).Model(&productRow{}).
		Where("sku = ?", sku).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("product not found")
	}
	return nil
}

func (t *storeTx) GetReservation(ctx context.Context, id int64) (reservationdomain.Reservation, error) {
	var row reservationRow
	err := t.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reservationdomain.Reservation{}, apperror.NotFound("reservation not found")
	}
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	return row.toDomain(), nil
}

func (t *storeTx) InsertReservation(ctx context.Context, r reservationdomain.Reservation) (int64, error) {
	row := fromDomainReservation(r)
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (t *storeTx) SetReservationStatus(ctx context.Context, id int64, status reservationdomain.Status) error {
	res := t.db.WithContext(ctx).Model(&reservationRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("reservation not found")
	}
	return nil
}

func (t *storeTx) SetReservationQuantity(ctx context.Context, id int64, qty int) error {
	res := t.db.WithContext(ctx).Model(&reservationRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"reserved_quantity": qty, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("reservation not found")
	}
	return nil
}

func (t *storeTx) DeleteReservation(ctx context.Context, id int64) error {
	res := t.db.WithContext(ctx).Delete(&reservationRow{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("reservation not found")
	}
	return nil
}

func (t *storeTx) AppendEvent(ctx context.Context, rec outbox.Record) error {
	row := outboxRow{
		AggregateType: rec.AggregateType,
		AggregateID:   rec.AggregateID,
		Type:          rec.Type,
		Payload:       rec.Payload,
		Traceparent:   rec.Traceparent,
		Status:        string(outbox.StatusPending),
		CreatedAt:     time.Now().UTC(),
	}
	return t.db.WithContext(ctx).Create(&row).Error
}

// --- reservation read side ---

func (s *Store) ListReservations(ctx context.Context) ([]reservationdomain.Detail, error) {
	var rows []detailRow
	err := s.db.WithContext(ctx).
		Table("reservations").
		Select("reservations.*, products.name AS product_name, products.price AS product_price").
		Joins("JOIN products ON reservations.product_sku = products.sku").
		Order("reservations.created_at DESC, reservations.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	details := make([]reservationdomain.Detail, 0, len(rows))
	for _, r := range rows {
		details = append(details, r.toDomain())
	}
	return details, nil
}

func (s *Store) GetReservationDetail(ctx context.Context, id int64) (reservationdomain.Detail, error) {
	var row detailRow
	res := s.db.WithContext(ctx).
		Table("reservations").
		Select("reservations.*, products.name AS product_name, products.price AS product_price").
		Joins("JOIN products ON reservations.product_sku = products.sku").
		Where("reservations.id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return reservationdomain.Detail{}, res.Error
	}
	if res.RowsAffected == 0 {
		return reservationdomain.Detail{}, apperror.NotFound("reservation not found")
	}
	return row.toDomain(), nil
}

// --- product catalog ---

func (s *Store) ListProducts(ctx context.Context) ([]productdomain.Product, error) {
	var rows []productRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	products := make([]productdomain.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toDomain())
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, sku string) (productdomain.Product, error) {
	var row productRow
	err := s.db.WithContext(ctx).Where("sku = ?", sku).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return productdomain.Product{}, apperror.NotFound("product not found")
	}
	if err != nil {
		return productdomain.Product{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) InsertProduct(ctx context.Context, p productdomain.Product) (int64, error) {
	row := fromDomainProduct(p)
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, apperror.Conflict("sku already exists")
	}
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *Store) UpdateProduct(ctx context.Context, sku string, patch productdomain.Patch) (int64, error) {
	fields := map[string]any{}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.Category != nil {
		fields["category"] = *patch.Category
	}
	if patch.Price != nil {
		fields["price"] = *patch.Price
	}
	if patch.Quantity != nil {
		fields["quantity"] = *patch.Quantity
	}
	if len(fields) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&productRow{}).Where("sku = ?", sku).Updates(fields)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperror.NotFound("product not found")
	}
	return res.RowsAffected, nil
}

func (s *Store) DeleteProduct(ctx context.Context, sku string) error {
	res := s.db.WithContext(ctx).Where("sku = ?", sku).Delete(&productRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("product not found")
	}
	return nil
}

func (s *Store) UpsertProduct(ctx context.Context, p productdomain.Product) error {
	row := fromDomainProduct(p)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "price", "quantity"}),
	}).Create(&row).Error
}

// --- admin ---

var seedProducts = []productRow{
	{SKU: "BTH-0001", Name: "Single-Handle Basin Faucet", Category: "Faucet", Price: decimal.NewFromInt(1290), Quantity: 25},
	{SKU: "BTH-0002", Name: "Wall-Mounted Shower Set", Category: "Shower", Price: decimal.NewFromInt(2590), Quantity: 18},
	{SKU: "BTH-0003", Name: "One-Piece Toilet 4.8L", Category: "Toilet", Price: decimal.NewFromInt(6490), Quantity: 10},
	{SKU: "BTH-0004", Name: "Pedestal Basin 50cm", Category: "Basin", Price: decimal.NewFromInt(1890), Quantity: 14},
}

// Recreate drops and rebuilds both tables, then seeds the sample catalog.
func (s *Store) Recreate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Migrator().DropTable(&reservationRow{}, &productRow{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(&productRow{}, &reservationRow{}); err != nil {
		return err
	}
	rows := make([]productRow, len(seedProducts))
	copy(rows, seedProducts)
	return db.Create(&rows).Error
}

// Clear empties both tables and resets their autoincrement counters.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range []string{
			"DELETE FROM reservations",
			"DELETE FROM products",
			"DELETE FROM sqlite_sequence WHERE name IN ('products', 'reservations')",
		} {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SeedIfEmpty loads the sample catalog on first boot.
func (s *Store) SeedIfEmpty(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&productRow{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	s.log.Info("seeding sample products")
	rows := make([]productRow, len(seedProducts))
	copy(rows, seedProducts)
	return s.db.WithContext(ctx).Create(&rows).Error
}

// --- outbox relay side ---

func (s *Store) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	var events []outbox.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []outboxRow
		if err := tx.Where("status = ?", string(outbox.StatusPending)).
			Order("id").Limit(batchSize).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]int64, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
			events = append(events, r.toEvent())
		}
		leaseUntil := time.Now().UTC().Add(lease)
		return tx.Model(&outboxRow{}).Where("id IN ?", ids).
			Updates(map[string]any{
				"status":      string(outbox.StatusInProgress),
				"relay_id":    relayID,
				"lease_until": leaseUntil,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).
		Where("id IN ?", ids).
		Update("status", string(outbox.StatusSent)).Error
}

func (s *Store) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      string(outbox.StatusFailed),
			"last_error":  errMsg,
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
}
