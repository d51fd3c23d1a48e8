package syncapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wse/elogist-sync/internal/integrations/elogist"
	"github.com/wse/elogist-sync/internal/models"
	"github.com/wse/elogist-sync/internal/payload"
	"github.com/wse/elogist-sync/internal/services/ordersync"
	"github.com/wse/elogist-sync/internal/storage/pgshop"
)

type OrderService interface {
	SubmitOrder(ctx context.Context, o *models.ShopOrder) (*models.OrderSyncRecord, error)
	ApplyStatusUpdate(ctx context.Context, upd ordersync.StatusUpdate) (bool, error)
}

type StatusRepo interface {
	Ping(ctx context.Context) error
	CountOrderSyncs(ctx context.Context) (int64, error)
	CountProductMappings(ctx context.Context) (int64, int64, error)
	ListRecentOrderSyncs(ctx context.Context, limit int) ([]*models.OrderSyncRecord, error)
	LogStats24h(ctx context.Context) (map[string]int64, error)
	GetState(ctx context.Context, key string) (string, bool, error)
}

// Opts carries everything the handlers need; FeedURL and WebhookAPIKey
// come straight from config.
type Opts struct {
	Orders  OrderService
	Repo    StatusRepo
	Elogist elogist.Client

	WebhookAPIKey string
	FeedURL       string
}

type API struct {
	opts Opts
}

func New(opts Opts) *API {
	return &API{opts: opts}
}

func (a *API) Routes(r chi.Router) {
	r.Route("/wse/v1", func(r chi.Router) {
		r.Post("/elogist-webhook", a.handleWebhook)
		r.Post("/orders/submit", a.handleSubmitOrder)
		r.Get("/health", a.handleHealth)
		r.Get("/status", a.handleStatus)
	})
}

type webhookRequest struct {
	OrderID    string  `json:"orderId"`
	Status     string  `json:"status"`
	TrackingNo *string `json:"trackingNo,omitempty"`
}

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// handleWebhook receives vendor status pushes. A status that changes
// nothing is still a 200: the vendor retries anything else.
func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, resultResponse{Message: "invalid api key"})
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: "invalid json body"})
		return
	}
	if req.OrderID == "" || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: "orderId and status are required"})
		return
	}
	if !models.IsElogistStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: "unknown status " + req.Status})
		return
	}

	changed, err := a.opts.Orders.ApplyStatusUpdate(r.Context(), ordersync.StatusUpdate{
		OrderID:    req.OrderID,
		Status:     req.Status,
		TrackingNo: req.TrackingNo,
		Source:     "webhook",
		CheckedAt:  time.Now().UTC(),
	})
	if err != nil {
		slog.Error("webhook apply failed", "orderId", req.OrderID, "err", err)
		writeJSON(w, http.StatusInternalServerError, resultResponse{Message: "internal error"})
		return
	}

	msg := "status unchanged"
	if changed {
		msg = "status updated"
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true, Message: msg})
}

func (a *API) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var o models.ShopOrder
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: "invalid json body"})
		return
	}

	rec, err := a.opts.Orders.SubmitOrder(r.Context(), &o)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "record": rec})
	case err == ordersync.ErrAlreadySubmitted:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false, "message": "order already submitted", "record": rec,
		})
	case payload.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, resultResponse{Message: err.Error()})
	default:
		slog.Error("order submit failed", "orderId", o.ID, "err", err)
		writeJSON(w, http.StatusInternalServerError, resultResponse{Message: "internal error"})
	}
}

type healthCheck struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// handleHealth: unhealthy when the database is down, degraded when the
// vendor is unreachable or the feed is not configured.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]healthCheck{}
	overall := "healthy"
	code := http.StatusOK

	if err := a.opts.Repo.Ping(ctx); err != nil {
		checks["database"] = healthCheck{Status: "down", Detail: err.Error()}
		overall = "unhealthy"
		code = http.StatusServiceUnavailable
	} else {
		checks["database"] = healthCheck{Status: "ok"}
	}

	if a.opts.Elogist != nil {
		if _, err := a.opts.Elogist.CarrierListGet(ctx); err != nil {
			checks["elogist"] = healthCheck{Status: "down", Detail: err.Error()}
			if overall == "healthy" {
				overall = "degraded"
			}
		} else {
			checks["elogist"] = healthCheck{Status: "ok"}
		}
	}

	if a.opts.FeedURL == "" {
		checks["feed"] = healthCheck{Status: "unconfigured"}
		if overall == "healthy" {
			overall = "degraded"
		}
	} else {
		checks["feed"] = healthCheck{Status: "ok"}
	}

	writeJSON(w, code, map[string]any{"status": overall, "checks": checks})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := map[string]any{}

	orders, err := a.opts.Repo.CountOrderSyncs(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, resultResponse{Message: "internal error"})
		return
	}
	products, variants, err := a.opts.Repo.CountProductMappings(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, resultResponse{Message: "internal error"})
		return
	}
	out["orders"] = map[string]any{"synced": orders}
	out["products"] = map[string]any{"synced": products, "variants": variants}

	if recent, err := a.opts.Repo.ListRecentOrderSyncs(ctx, 10); err == nil {
		out["recentOrders"] = recent
	}
	if logs, err := a.opts.Repo.LogStats24h(ctx); err == nil {
		out["logs24h"] = logs
	}
	if val, ok, err := a.opts.Repo.GetState(ctx, pgshop.StateKeyFeedLastRun); err == nil && ok {
		out["feedLastRun"] = json.RawMessage(val)
	}
	if val, ok, err := a.opts.Repo.GetState(ctx, pgshop.StateKeyStatusPollAfter); err == nil && ok {
		out["statusPollAfter"] = val
	}
	out["config"] = map[string]any{
		"feedConfigured":    a.opts.FeedURL != "",
		"webhookConfigured": a.opts.WebhookAPIKey != "",
	}

	writeJSON(w, http.StatusOK, out)
}

// No configured key means the check is off and every push is accepted.
func (a *API) authorized(r *http.Request) bool {
	if a.opts.WebhookAPIKey == "" {
		return true
	}
	if r.Header.Get("X-API-Key") == a.opts.WebhookAPIKey {
		return true
	}
	return r.URL.Query().Get("api_key") == a.opts.WebhookAPIKey
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
