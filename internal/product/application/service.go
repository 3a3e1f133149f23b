package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bathware-labs/stock-reservation-service/internal/product/domain"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
)

type Service struct {
	log   *slog.Logger
	store ProductStore
}

func NewService(log *slog.Logger, store ProductStore) *Service {
	return &Service{log: log, store: store}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) Get(ctx context.Context, sku string) (domain.Product, error) {
	return s.store.GetProduct(ctx, sku)
}

func (s *Service) Create(ctx context.Context, p domain.Product) (int64, error) {
	if p.SKU == "" {
		return 0, apperror.InvalidArgument("sku required")
	}
	if p.Price.IsNegative() {
		return 0, apperror.InvalidArgument("price must not be negative")
	}
	if p.Quantity < 0 {
		return 0, apperror.InvalidArgument("quantity must not be negative")
	}
	id, err := s.store.InsertProduct(ctx, p)
	if err != nil {
		return 0, err
	}
	s.log.Info("product created", "sku", p.SKU, "id", id)
	return id, nil
}

func (s *Service) Update(ctx context.Context, sku string, patch domain.Patch) (int64, error) {
	if patch.Price != nil && patch.Price.IsNegative() {
		return 0, apperror.InvalidArgument("price must not be negative")
	}
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return 0, apperror.InvalidArgument("quantity must not be negative")
	}
	// An empty patch is still answered with changes=0 after the product's
	// existence is confirmed.
	if _, err := s.store.GetProduct(ctx, sku); err != nil {
		return 0, err
	}
	if patch.Empty() {
		return 0, nil
	}
	return s.store.UpdateProduct(ctx, sku, patch)
}

func (s *Service) Delete(ctx context.Context, sku string) error {
	if err := s.store.DeleteProduct(ctx, sku); err != nil {
		return err
	}
	s.log.Info("product deleted", "sku", sku)
	return nil
}

// BulkUpsert imports products by SKU, counting rows without a SKU as
// errors rather than aborting the batch.
func (s *Service) BulkUpsert(ctx context.Context, products []domain.Product) (succeeded, failed int, err error) {
	if len(products) == 0 {
		return 0, 0, apperror.InvalidArgument("products must be a non-empty array")
	}
	for _, p := range products {
		if p.SKU == "" || p.Price.IsNegative() || p.Quantity < 0 {
			failed++
			continue
		}
		if err := s.store.UpsertProduct(ctx, p); err != nil {
			s.log.Error("bulk upsert row failed", "sku", p.SKU, "err", err)
			failed++
			continue
		}
		succeeded++
	}
	s.log.Info("bulk upsert finished", "succeeded", succeeded, "failed", failed)
	return succeeded, failed, nil
}

// ExportCSV renders the catalog with the fixed column set clients expect.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ID", "SKU", "Name", "Category", "Price", "Quantity"})
	for _, p := range products {
		_ = w.Write([]string{
			strconv.FormatInt(p.ID, 10),
			p.SKU,
			p.Name,
			p.Category,
			p.Price.String(),
			fmt.Sprintf("%d", p.Quantity),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperror.Internal(err)
	}
	return buf.Bytes(), nil
}
