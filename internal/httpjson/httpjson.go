// Package httpjson holds the response conventions shared by all handlers:
// ok-shaped JSON bodies and the error-kind to status mapping.
package httpjson

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
)

func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError shapes a failure as {ok:false, error, available?} with the
// status the error kind maps to. Internal causes are logged, never leaked.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := apperror.HTTPStatus(err)
	body := map[string]any{"ok": false}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
		body["error"] = "internal error"
	} else {
		body["error"] = errMessage(err)
	}
	if available, ok := apperror.AvailableOf(err); ok {
		body["available"] = available
	}
	Write(w, status, body)
}

func errMessage(err error) string {
	var e *apperror.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// WriteCSV serves data as a CSV download attachment.
func WriteCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
