package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to a status and a public message.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // empty means err.Error()
}

// HandleError answers with the first mapping whose sentinel matches err.
// Mapped 5xx answers are logged at warn with the full chain since the
// client only sees the public message. Unmapped errors become a logged 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	logger := ctxlog.FromContext(ctx)

	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		if m.Status >= http.StatusInternalServerError {
			logger.Warn("request failed", "status", m.Status, "sentinel", m.Error.Error(), "error", err)
		} else {
			logger.Debug("request rejected", "status", m.Status, "sentinel", m.Error.Error(), "error", err)
		}
		Error(w, m.Status, msg)
		return
	}

	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
