package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bathware-labs/stock-reservation-service/internal/httpjson"
	"github.com/bathware-labs/stock-reservation-service/internal/reservation/application"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
)

type Handler struct {
	log         *slog.Logger
	coordinator *application.Coordinator
	tracer      trace.Tracer
}

func NewHandler(log *slog.Logger, coordinator *application.Coordinator) *Handler {
	return &Handler{
		log:         log,
		coordinator: coordinator,
		tracer:      otel.Tracer("reservation-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/export", h.exportCSV)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.updateQuantity)
	r.Put("/{id}/status", h.updateStatus)
	r.Delete("/{id}", h.delete)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListReservations")
	defer span.End()

	details, err := h.coordinator.List(ctx)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, details)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetReservation")
	defer span.End()

	id, err := parseID(r)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	d, err := h.coordinator.Get(ctx, id)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, d)
}

type createReq struct {
	ProductSKU       string          `json:"product_sku"`
	CustomerName     string          `json:"customer_name"`
	ReservedQuantity int             `json:"reserved_quantity"`
	SalesPerson      string          `json:"sales_person"`
	Discount         decimal.Decimal `json:"discount"`
	VAT              decimal.Decimal `json:"vat"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateReservation")
	defer span.End()

	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, h.log, apperror.InvalidArgument("invalid body"))
		return
	}
	id, err := h.coordinator.Create(ctx, application.CreateInput{
		ProductSKU:       req.ProductSKU,
		CustomerName:     req.CustomerName,
		ReservedQuantity: req.ReservedQuantity,
		SalesPerson:      req.SalesPerson,
		Discount:         req.Discount,
		VAT:              req.VAT,
	})
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateReservationQuantity")
	defer span.End()

	id, err := parseID(r)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	var req struct {
		ReservedQuantity int `json:"reserved_quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, h.log, apperror.InvalidArgument("invalid body"))
		return
	}
	if err := h.coordinator.UpdateQuantity(ctx, id, req.ReservedQuantity); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "changes": 1})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateReservationStatus")
	defer span.End()

	id, err := parseID(r)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, h.log, apperror.InvalidArgument("invalid body"))
		return
	}
	if err := h.coordinator.UpdateStatus(ctx, id, req.Status); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "changes": 1})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteReservation")
	defer span.End()

	id, err := parseID(r)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	if err := h.coordinator.Delete(ctx, id); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "deleted": id})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ExportReservations")
	defer span.End()

	data, err := h.coordinator.ExportCSV(ctx)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.WriteCSV(w, "reservations.csv", data)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperror.InvalidArgument("invalid reservation id")
	}
	return id, nil
}
