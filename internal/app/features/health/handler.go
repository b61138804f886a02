package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/system/cache"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Cache  cache.Cache
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. c may be nil.
func NewHandler(client *mongo.Client, c cache.Cache, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Cache:  c,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
	Message  string `json:"message,omitempty"`
}

const checkKey = "health:check"

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "cache":"ok" }
//
// A failing cache degrades but does not fail the check. On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable" }
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Cache != nil {
		resp.Cache = "ok"
		if _, _, err := h.Cache.Get(ctx, checkKey); err != nil {
			h.Log.Warn("health-check: cache check failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Cache = "unavailable"
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}
