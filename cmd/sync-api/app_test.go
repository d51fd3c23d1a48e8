package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wse/elogist-sync/internal/api/syncapi"
	"github.com/wse/elogist-sync/internal/integrations/elogist"
	elogistfake "github.com/wse/elogist-sync/internal/integrations/elogist/fake"
	"github.com/wse/elogist-sync/internal/models"
	"github.com/wse/elogist-sync/internal/payload"
	"github.com/wse/elogist-sync/internal/pickup"
	"github.com/wse/elogist-sync/internal/services/ordersync"
	"github.com/wse/elogist-sync/internal/storage/pgshop"
)

type fakeRepo struct{}

func (r *fakeRepo) GetOrderSync(context.Context, uint64) (*models.OrderSyncRecord, error) {
	return nil, nil
}

func (r *fakeRepo) CreateOrderSync(_ context.Context, in pgshop.OrderSyncCreate) (*models.OrderSyncRecord, error) {
	return &models.OrderSyncRecord{ID: 1, WCOrderID: in.WCOrderID, CurrentStatus: in.CurrentStatus}, nil
}

func (r *fakeRepo) ApplyOrderStatus(context.Context, pgshop.OrderStatusUpdate) (bool, error) {
	return false, nil
}

func (r *fakeRepo) AppendLog(context.Context, string, string, string, map[string]any) error {
	return nil
}

type fakeStatusRepo struct{}

func (r *fakeStatusRepo) Ping(context.Context) error                        { return nil }
func (r *fakeStatusRepo) CountOrderSyncs(context.Context) (int64, error)    { return 0, nil }
func (r *fakeStatusRepo) CountProductMappings(context.Context) (int64, int64, error) {
	return 0, 0, nil
}
func (r *fakeStatusRepo) ListRecentOrderSyncs(context.Context, int) ([]*models.OrderSyncRecord, error) {
	return nil, nil
}
func (r *fakeStatusRepo) LogStats24h(context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}
func (r *fakeStatusRepo) GetState(context.Context, string) (string, bool, error) {
	return "", false, nil
}

type fakeShop struct{}

func (s *fakeShop) UpdateOrderStatus(context.Context, uint64, string, string) error { return nil }
func (s *fakeShop) AddOrderNote(context.Context, uint64, string) error              { return nil }
func (s *fakeShop) SetOrderMeta(context.Context, uint64, map[string]string) error   { return nil }

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func testApp(t *testing.T) (*ordersync.Service, *syncapi.API, string) {
	t.Helper()
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	var ec elogist.Client = elogistfake.New()
	builder := payload.New("WSE1", pickup.New(nil))
	svc := ordersync.New(&fakeRepo{}, &fakeShop{}, ec, builder, nil, 0)
	api := syncapi.New(syncapi.Opts{
		Orders:        svc,
		Repo:          &fakeStatusRepo{},
		Elogist:       ec,
		WebhookAPIKey: "secret",
		FeedURL:       "https://example.cz/feed.xml",
	})
	return svc, api, sw
}

func TestRunSyncAPI_SwaggerAndHealthServed(t *testing.T) {
	svc, api, sw := testApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := syncAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runSyncAPI(ctx, opts, svc, api, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), "\"swagger\"")

	resp, err = http.Get("http://" + httpAddr + "/wse/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	cancel()
	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	case err := <-errCh:
		require.Error(t, err)
	}
}

func TestRunSyncAPI_MissingSwagger(t *testing.T) {
	svc, api, _ := testApp(t)

	err := runSyncAPI(context.Background(), syncAPIOpts{httpAddr: "127.0.0.1:0"}, svc, api, fakeConsumer{})
	require.Error(t, err)

	err = runSyncAPI(context.Background(), syncAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: "/nonexistent/swagger.json",
	}, svc, api, fakeConsumer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}
