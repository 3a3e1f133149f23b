package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bathware-labs/stock-reservation-service/internal/httpjson"
	"github.com/bathware-labs/stock-reservation-service/internal/product/application"
	"github.com/bathware-labs/stock-reservation-service/internal/product/domain"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("product-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/export", h.exportCSV)
	r.Post("/", h.create)
	r.Post("/bulk", h.bulkUpsert)
	r.Get("/{sku}", h.get)
	r.Put("/{sku}", h.update)
	r.Delete("/{sku}", h.delete)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	products, err := h.service.List(ctx)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, products)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	p, err := h.service.Get(ctx, chi.URLParam(r, "sku"))
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, p)
}

type productReq struct {
	SKU      string           `json:"sku"`
	Name     string           `json:"name"`
	Category string           `json:"category"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

func (req productReq) toDomain() domain.Product {
	p := domain.Product{
		SKU:      req.SKU,
		Name:     req.Name,
		Category: req.Category,
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Quantity != nil {
		p.Quantity = *req.Quantity
	}
	return p
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, h.log, apperror.InvalidArgument("invalid body"))
		return
	}
	id, err := h.service.Create(ctx, req.toDomain())
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

type productPatchReq struct {
	Name     *string          `json:"name"`
	Category *string          `json:"category"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateProduct")
	defer span.End()

	var req productPatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, h.log, apperror.InvalidArgument("invalid body"))
		return
	}
	patch := domain.Patch{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Quantity: req.Quantity,
	}
	changes, err := h.service.Update(ctx, chi.URLParam(r, "sku"), patch)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "changes": changes})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct")
	defer span.End()

	sku := chi.URLParam(r, "sku")
	if err := h.service.Delete(ctx, sku); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "deleted": sku})
}

func (h *Handler) bulkUpsert(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "BulkUpsertProducts")
	defer span.End()

	var reqs []productReq
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		httpjson.WriteError(w, h.log, apperror.InvalidArgument("products must be a non-empty array"))
		return
	}
	products := make([]domain.Product, 0, len(reqs))
	for _, req := range reqs {
		products = append(products, req.toDomain())
	}
	succeeded, failed, err := h.service.BulkUpsert(ctx, products)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"ok":           true,
		"successCount": succeeded,
		"errorCount":   failed,
		"message":      message(succeeded, failed),
	})
}

func message(succeeded, failed int) string {
	return fmt.Sprintf("Imported %d products, %d errors", succeeded, failed)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ExportProducts")
	defer span.End()

	data, err := h.service.ExportCSV(ctx)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.WriteCSV(w, "products.csv", data)
}
