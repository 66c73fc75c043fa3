// Package handlers implements the REST endpoints of the network API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"scent-memory-network/internal/application/dto"
	"scent-memory-network/internal/application/queries"
	"scent-memory-network/pkg/auth"
	"scent-memory-network/pkg/errors"
)

// maxInspectBody bounds POST /network/inspect payloads.
const maxInspectBody = 4 << 20

// NetworkService builds networks for the handlers.
type NetworkService interface {
	GetNetwork(ctx context.Context, query *queries.GetNetworkQuery) (*dto.NetworkResult, error)
	Inspect(ctx context.Context, query *queries.InspectQuery) (*dto.NetworkResult, error)
	Families() *dto.FamiliesResult
}

// NetworkHandler handles network-related HTTP requests
type NetworkHandler struct {
	service      NetworkService
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewNetworkHandler creates a new network handler
func NewNetworkHandler(service NetworkService, logger *zap.Logger, errorHandler *errors.ErrorHandler) *NetworkHandler {
	return &NetworkHandler{
		service:      service,
		logger:       logger,
		errorHandler: errorHandler,
	}
}

// GetNetwork handles GET /network
func (h *NetworkHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, errors.NewUnauthorizedError("Unauthorized"))
		return
	}

	legend, err := boolParam(r, "legend")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.service.GetNetwork(r.Context(), &queries.GetNetworkQuery{
		UserID: userCtx.UserID,
		Token:  userCtx.Token,
		Legend: legend,
	})
	if err != nil {
		h.logger.Warn("Failed to build network",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetFamilies handles GET /network/families
func (h *NetworkHandler) GetFamilies(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Families())
}

// Inspect handles POST /network/inspect
func (h *NetworkHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	legend, err := boolParam(r, "legend")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInspectBody))
	if err != nil {
		h.errorHandler.Handle(w, r, errors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}

	result, err := h.service.Inspect(r.Context(), &queries.InspectQuery{Body: body, Legend: legend})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if len(result.Rejected) > 0 {
		h.logger.Info("Inspect dropped malformed records", zap.Int("rejected", len(result.Rejected)))
	}
	h.respondJSON(w, http.StatusOK, result)
}

func (h *NetworkHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.NewValidationError("query parameter " + name + " must be a boolean")
	}
	return v, nil
}
