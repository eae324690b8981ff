package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/journey-engine/pkg/content"
)

type CitiesResponse struct {
	Cities []content.City `json:"cities"`
}

// CitiesHandler serves GET /v1/cities.
type CitiesHandler struct {
	content content.Store
	logger  *slog.Logger
}

func NewCitiesHandler(cs content.Store, logger *slog.Logger) *CitiesHandler {
	return &CitiesHandler{
		content: cs,
		logger:  logger,
	}
}

func (h *CitiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	cities, err := h.content.ListCities(r.Context())
	if err != nil {
		h.logger.Error("Error listing cities", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list cities.")
		return
	}
	if cities == nil {
		cities = []content.City{}
	}

	writeJSON(w, h.logger, http.StatusOK, CitiesResponse{Cities: cities})
}
