package syncapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/wse/elogist-sync/internal/integrations/elogist"
	"github.com/wse/elogist-sync/internal/models"
	"github.com/wse/elogist-sync/internal/payload"
	"github.com/wse/elogist-sync/internal/services/ordersync"
)

type fakeOrders struct {
	submitRec  *models.OrderSyncRecord
	submitErr  error
	applyOK    bool
	applyErr   error
	lastUpdate ordersync.StatusUpdate
}

func (f *fakeOrders) SubmitOrder(_ context.Context, o *models.ShopOrder) (*models.OrderSyncRecord, error) {
	return f.submitRec, f.submitErr
}

func (f *fakeOrders) ApplyStatusUpdate(_ context.Context, upd ordersync.StatusUpdate) (bool, error) {
	f.lastUpdate = upd
	return f.applyOK, f.applyErr
}

type fakeRepo struct {
	pingErr error
	state   map[string]string
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }

func (f *fakeRepo) CountOrderSyncs(context.Context) (int64, error) { return 7, nil }

func (f *fakeRepo) CountProductMappings(context.Context) (int64, int64, error) { return 3, 5, nil }

func (f *fakeRepo) ListRecentOrderSyncs(context.Context, int) ([]*models.OrderSyncRecord, error) {
	return []*models.OrderSyncRecord{{ID: 1, WCOrderID: 42, CurrentStatus: "SHIPPED"}}, nil
}

func (f *fakeRepo) LogStats24h(context.Context) (map[string]int64, error) {
	return map[string]int64{"error": 1, "info": 9}, nil
}

func (f *fakeRepo) GetState(_ context.Context, key string) (string, bool, error) {
	v, ok := f.state[key]
	return v, ok, nil
}

type fakeElogist struct {
	carrierErr error
}

func (f *fakeElogist) CarrierListGet(context.Context) ([]elogist.Carrier, error) {
	return []elogist.Carrier{{CarrierID: "PPL"}}, f.carrierErr
}

func (f *fakeElogist) DeliveryOrder(context.Context, *elogist.DeliveryOrderRequest) (*elogist.DeliveryOrderStatus, error) {
	return nil, errors.New("not used")
}

func (f *fakeElogist) DeliveryOrderStatusGet(context.Context, string) (*elogist.DeliveryOrderStatus, error) {
	return nil, errors.New("not used")
}

func (f *fakeElogist) DeliveryOrderStatusGetNews(context.Context, time.Time) ([]elogist.DeliveryOrderStatus, error) {
	return nil, nil
}

func newTestServer(orders *fakeOrders, repo *fakeRepo, ec elogist.Client) *httptest.Server {
	return newTestServerWithKey(orders, repo, ec, "secret")
}

func newTestServerWithKey(orders *fakeOrders, repo *fakeRepo, ec elogist.Client, key string) *httptest.Server {
	r := chi.NewRouter()
	New(Opts{
		Orders:        orders,
		Repo:          repo,
		Elogist:       ec,
		WebhookAPIKey: key,
		FeedURL:       "https://example.cz/feed.xml",
	}).Routes(r)
	return httptest.NewServer(r)
}

func doJSON(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestWebhook_Unauthorized(t *testing.T) {
	srv := newTestServer(&fakeOrders{}, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook",
		`{"orderId":"42","status":"SHIPPED"}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook",
		`{"orderId":"42","status":"SHIPPED"}`,
		map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_NoKeyConfiguredAllows(t *testing.T) {
	orders := &fakeOrders{applyOK: true}
	srv := newTestServerWithKey(orders, &fakeRepo{}, &fakeElogist{}, "")
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook",
		`{"orderId":"42","status":"SHIPPED"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
	require.Equal(t, "42", orders.lastUpdate.OrderID)
}

func TestWebhook_HeaderAndQueryAuth(t *testing.T) {
	orders := &fakeOrders{applyOK: true}
	srv := newTestServer(orders, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook",
		`{"orderId":"42","status":"SHIPPED","trackingNo":"TRK1"}`,
		map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
	require.Equal(t, "status updated", body["message"])
	require.Equal(t, "42", orders.lastUpdate.OrderID)
	require.Equal(t, "webhook", orders.lastUpdate.Source)
	require.Equal(t, "TRK1", *orders.lastUpdate.TrackingNo)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook?api_key=secret",
		`{"orderId":"42","status":"SHIPPED"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhook_NoChangeStill200(t *testing.T) {
	srv := newTestServer(&fakeOrders{applyOK: false}, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook",
		`{"orderId":"999","status":"DELIVERED"}`,
		map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
	require.Equal(t, "status unchanged", body["message"])
}

func TestWebhook_BadRequests(t *testing.T) {
	srv := newTestServer(&fakeOrders{}, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()
	auth := map[string]string{"X-API-Key": "secret"}

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook", `{notjson`, auth)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook", `{"status":"SHIPPED"}`, auth)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook",
		`{"orderId":"42","status":"FLYING"}`, auth)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_InternalError(t *testing.T) {
	srv := newTestServer(&fakeOrders{applyErr: errors.New("db down")}, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/elogist-webhook",
		`{"orderId":"42","status":"SHIPPED"}`, map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSubmitOrder_OK(t *testing.T) {
	orders := &fakeOrders{submitRec: &models.OrderSyncRecord{ID: 1, WCOrderID: 42, CurrentStatus: "NEW"}}
	srv := newTestServer(orders, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/orders/submit",
		`{"id":42,"status":"processing","total":"1250","currency":"CZK"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
}

func TestSubmitOrder_AlreadySubmitted(t *testing.T) {
	orders := &fakeOrders{
		submitRec: &models.OrderSyncRecord{ID: 1, WCOrderID: 42},
		submitErr: ordersync.ErrAlreadySubmitted,
	}
	srv := newTestServer(orders, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/orders/submit",
		`{"id":42,"total":"10"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["success"])
}

func TestSubmitOrder_Validation422(t *testing.T) {
	orders := &fakeOrders{submitErr: &payload.ValidationError{Field: "address", Reason: "street is empty"}}
	srv := newTestServer(orders, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/wse/v1/orders/submit",
		`{"id":42,"total":"10"}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, body["message"], "street")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeOrders{}, &fakeRepo{}, &fakeElogist{})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/wse/v1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", body["status"])
}

func TestHealth_DegradedOnElogist(t *testing.T) {
	srv := newTestServer(&fakeOrders{}, &fakeRepo{}, &fakeElogist{carrierErr: errors.New("timeout")})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/wse/v1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "degraded", body["status"])
}

func TestHealth_UnhealthyOnDB(t *testing.T) {
	srv := newTestServer(&fakeOrders{}, &fakeRepo{pingErr: errors.New("no conn")}, &fakeElogist{})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/wse/v1/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "unhealthy", body["status"])
}

func TestStatus(t *testing.T) {
	repo := &fakeRepo{state: map[string]string{
		"feedsync:last_run": `{"processed":12,"imported":2}`,
		"statuspoll:after":  "2026-02-01T00:00:00Z",
	}}
	srv := newTestServer(&fakeOrders{}, repo, &fakeElogist{})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/wse/v1/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	orders := body["orders"].(map[string]any)
	require.Equal(t, float64(7), orders["synced"])
	products := body["products"].(map[string]any)
	require.Equal(t, float64(3), products["synced"])
	require.Equal(t, float64(5), products["variants"])
	require.Equal(t, "2026-02-01T00:00:00Z", body["statusPollAfter"])
	require.NotNil(t, body["feedLastRun"])
	require.NotNil(t, body["logs24h"])
	cfg := body["config"].(map[string]any)
	require.Equal(t, true, cfg["feedConfigured"])
}
