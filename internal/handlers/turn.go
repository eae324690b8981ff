package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/journey-engine/internal/middleware"
	"github.com/jwebster45206/journey-engine/pkg/turn"
)

const maxTurnBody = 64 << 10

// TurnProcessor is implemented by turns.Processor.
type TurnProcessor interface {
	Process(ctx context.Context, ev turn.Event) (turn.Result, error)
}

// TurnHandler serves POST /v1/turns.
type TurnHandler struct {
	processor TurnProcessor
	logger    *slog.Logger
	timeout   time.Duration
}

func NewTurnHandler(processor TurnProcessor, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{
		processor: processor,
		logger:    logger,
		timeout:   10 * time.Second,
	}
}

func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for turn endpoint",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var ev turn.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody)).Decode(&ev); err != nil {
		h.logger.Warn("Invalid turn request body", "error", err, "request_id", middleware.RequestID(r.Context()))
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'type' and 'user_id' fields.")
		return
	}
	ev.City = normalizeCity(ev.City)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.processor.Process(ctx, ev)
	if errors.Is(err, turn.ErrInvalidEvent) {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Error processing turn", "error", err, "request_id", middleware.RequestID(r.Context()))
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to process turn. Please try again.")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, res)
}

// normalizeCity collapses the whitespace the speech layer leaves around city
// names. Casing is left to the turn processor, which tries the exact name
// before title-casing it.
func normalizeCity(city string) string {
	return strings.Join(strings.Fields(city), " ")
}
