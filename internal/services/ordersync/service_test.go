package ordersync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wse/elogist-sync/internal/broker/messages"
	"github.com/wse/elogist-sync/internal/integrations/elogist"
	"github.com/wse/elogist-sync/internal/models"
	"github.com/wse/elogist-sync/internal/payload"
	"github.com/wse/elogist-sync/internal/pickup"
	"github.com/wse/elogist-sync/internal/storage/pgshop"
)

type fakeRepo struct {
	records map[uint64]*models.OrderSyncRecord
	logs    []string

	applyChanged bool
	applyErr     error
	lastApply    pgshop.OrderStatusUpdate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[uint64]*models.OrderSyncRecord{}}
}

func (r *fakeRepo) GetOrderSync(_ context.Context, wcOrderID uint64) (*models.OrderSyncRecord, error) {
	return r.records[wcOrderID], nil
}

func (r *fakeRepo) CreateOrderSync(_ context.Context, in pgshop.OrderSyncCreate) (*models.OrderSyncRecord, error) {
	rec := &models.OrderSyncRecord{
		ID:             uint64(len(r.records) + 1),
		WCOrderID:      in.WCOrderID,
		ElogistOrderID: in.ElogistOrderID,
		SysOrderID:     in.SysOrderID,
		CurrentStatus:  in.CurrentStatus,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	r.records[in.WCOrderID] = rec
	return rec, nil
}

func (r *fakeRepo) ApplyOrderStatus(_ context.Context, upd pgshop.OrderStatusUpdate) (bool, error) {
	r.lastApply = upd
	if rec, ok := r.records[upd.WCOrderID]; ok && r.applyErr == nil {
		rec.CurrentStatus = upd.Status
		if upd.TrackingNumber != nil {
			rec.TrackingNumber = upd.TrackingNumber
		}
	}
	return r.applyChanged, r.applyErr
}

func (r *fakeRepo) AppendLog(_ context.Context, level, source, message string, _ map[string]any) error {
	r.logs = append(r.logs, level+"/"+message)
	return nil
}

type shopCall struct {
	kind    string
	orderID uint64
	status  string
	note    string
	meta    map[string]string
}

type fakeShop struct {
	calls []shopCall
	err   error
}

func (s *fakeShop) UpdateOrderStatus(_ context.Context, orderID uint64, status, note string) error {
	s.calls = append(s.calls, shopCall{kind: "status", orderID: orderID, status: status, note: note})
	return s.err
}

func (s *fakeShop) AddOrderNote(_ context.Context, orderID uint64, note string) error {
	s.calls = append(s.calls, shopCall{kind: "note", orderID: orderID, note: note})
	return s.err
}

func (s *fakeShop) SetOrderMeta(_ context.Context, orderID uint64, meta map[string]string) error {
	s.calls = append(s.calls, shopCall{kind: "meta", orderID: orderID, meta: meta})
	return s.err
}

type fakeElogist struct {
	submitErr error
	lastReq   *elogist.DeliveryOrderRequest
}

func (f *fakeElogist) CarrierListGet(context.Context) ([]elogist.Carrier, error) {
	return nil, nil
}

func (f *fakeElogist) DeliveryOrder(_ context.Context, req *elogist.DeliveryOrderRequest) (*elogist.DeliveryOrderStatus, error) {
	f.lastReq = req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &elogist.DeliveryOrderStatus{
		OrderID:    req.OrderID,
		SysOrderID: "EL-" + req.OrderID,
		Status:     models.ElogistStatusNew,
	}, nil
}

func (f *fakeElogist) DeliveryOrderStatusGet(_ context.Context, orderID string) (*elogist.DeliveryOrderStatus, error) {
	return &elogist.DeliveryOrderStatus{
		OrderID:    orderID,
		SysOrderID: "EL-" + orderID,
		Status:     models.ElogistStatusNew,
	}, nil
}

func (f *fakeElogist) DeliveryOrderStatusGetNews(context.Context, time.Time) ([]elogist.DeliveryOrderStatus, error) {
	return nil, nil
}

func testOrder() *models.ShopOrder {
	return &models.ShopOrder{
		ID:            42,
		Status:        models.ShopStatusProcessing,
		Currency:      "CZK",
		Total:         1250,
		PaymentMethod: "bacs",
		DateCreated:   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		Billing: models.Address{
			FirstName: "Jan", LastName: "Novák",
			Address1: "Dlouhá 12", City: "Praha", Postcode: "110 00", Country: "CZ",
			Email: "jan@example.cz", Phone: "777123456",
		},
		ShippingLines: []models.ShippingLine{
			{MethodID: "wse_shipping_ppl", MethodTitle: "PPL"},
		},
		LineItems: []models.OrderItem{
			{ProductID: 5001, Name: "Tričko", SKU: "TSHIRT-M", Quantity: 1},
		},
	}
}

func newService(repo *fakeRepo, shop *fakeShop, ec elogist.Client) *Service {
	b := payload.New("WSE1", pickup.New(nil))
	return New(repo, shop, ec, b, nil, 0)
}

func TestSubmitOrder_HappyPath(t *testing.T) {
	repo := newFakeRepo()
	shop := &fakeShop{}
	ec := &fakeElogist{}
	svc := newService(repo, shop, ec)

	rec, err := svc.SubmitOrder(context.Background(), testOrder())
	require.NoError(t, err)
	require.Equal(t, uint64(42), rec.WCOrderID)
	require.Equal(t, models.ElogistStatusNew, rec.CurrentStatus)
	require.NotNil(t, rec.SysOrderID)
	require.Equal(t, "EL-42", *rec.SysOrderID)

	require.NotNil(t, ec.lastReq)
	require.Equal(t, "42", ec.lastReq.OrderID)

	require.Len(t, shop.calls, 1)
	require.Equal(t, "status", shop.calls[0].kind)
	require.Equal(t, models.ShopStatusAwaitingShipment, shop.calls[0].status)
	require.Contains(t, shop.calls[0].note, "EL-42")
}

func TestSubmitOrder_Duplicate(t *testing.T) {
	repo := newFakeRepo()
	shop := &fakeShop{}
	ec := &fakeElogist{}
	svc := newService(repo, shop, ec)

	first, err := svc.SubmitOrder(context.Background(), testOrder())
	require.NoError(t, err)

	second, err := svc.SubmitOrder(context.Background(), testOrder())
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Equal(t, first.ID, second.ID)
	// no new vendor call, no new shop call
	require.Len(t, shop.calls, 1)
}

func TestSubmitOrder_ValidationNotesOrder(t *testing.T) {
	repo := newFakeRepo()
	shop := &fakeShop{}
	svc := newService(repo, shop, &fakeElogist{})

	o := testOrder()
	o.Billing.Address1 = ""
	_, err := svc.SubmitOrder(context.Background(), o)
	require.Error(t, err)
	require.True(t, payload.IsValidation(err))

	require.Len(t, shop.calls, 1)
	require.Equal(t, "note", shop.calls[0].kind)
	require.Contains(t, shop.calls[0].note, "failed")
	require.Contains(t, repo.logs, "error/order submission failed")
	require.Nil(t, repo.records[42])
}

func TestSubmitOrder_VendorDuplicateRecovers(t *testing.T) {
	repo := newFakeRepo()
	shop := &fakeShop{}
	ec := &fakeElogist{submitErr: &elogist.APIError{Code: 1005, Description: "duplicate"}}
	svc := newService(repo, shop, ec)

	rec, err := svc.SubmitOrder(context.Background(), testOrder())
	require.NoError(t, err)
	require.Equal(t, "EL-42", *rec.SysOrderID)
}

func TestSubmitOrder_VendorErrorNotesOrder(t *testing.T) {
	repo := newFakeRepo()
	shop := &fakeShop{}
	ec := &fakeElogist{submitErr: &elogist.APIError{Code: 1013, Description: "bad carrier"}}
	svc := newService(repo, shop, ec)

	_, err := svc.SubmitOrder(context.Background(), testOrder())
	require.Error(t, err)
	require.Nil(t, repo.records[42])
	require.Len(t, shop.calls, 1)
	require.Equal(t, "note", shop.calls[0].kind)
}

func TestApplyStatusUpdate_DeliveredPushesToShop(t *testing.T) {
	repo := newFakeRepo()
	repo.applyChanged = true
	shop := &fakeShop{}
	svc := newService(repo, shop, &fakeElogist{})

	_, err := svc.SubmitOrder(context.Background(), testOrder())
	require.NoError(t, err)
	shop.calls = nil

	trk := "TRK123"
	changed, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdate{
		OrderID:    "42",
		Status:     models.ElogistStatusDelivered,
		TrackingNo: &trk,
		Source:     messages.SourceWebhook,
	})
	require.NoError(t, err)
	require.True(t, changed)

	require.Len(t, shop.calls, 2)
	require.Equal(t, "status", shop.calls[0].kind)
	require.Equal(t, models.ShopStatusCompleted, shop.calls[0].status)
	require.Contains(t, shop.calls[0].note, "TRK123")
	require.Equal(t, "meta", shop.calls[1].kind)
	require.Equal(t, "TRK123", shop.calls[1].meta["_tracking_number"])

	require.Equal(t, models.ElogistStatusDelivered, repo.lastApply.Status)
	require.Equal(t, "TRK123", *repo.records[42].TrackingNumber)
}

func TestApplyStatusUpdate_NoChangeSkipsShop(t *testing.T) {
	repo := newFakeRepo()
	repo.applyChanged = false
	shop := &fakeShop{}
	svc := newService(repo, shop, &fakeElogist{})

	_, err := svc.SubmitOrder(context.Background(), testOrder())
	require.NoError(t, err)
	shop.calls = nil

	changed, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdate{
		OrderID: "42",
		Status:  models.ElogistStatusNew,
		Source:  messages.SourcePoll,
	})
	require.NoError(t, err)
	require.False(t, changed)
	require.Empty(t, shop.calls)
}

func TestApplyStatusUpdate_UnknownOrderNoop(t *testing.T) {
	repo := newFakeRepo()
	shop := &fakeShop{}
	svc := newService(repo, shop, &fakeElogist{})

	changed, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdate{
		OrderID: "999",
		Status:  models.ElogistStatusShipped,
	})
	require.NoError(t, err)
	require.False(t, changed)
	require.Empty(t, shop.calls)
}

func TestApplyStatusUpdate_BadInput(t *testing.T) {
	svc := newService(newFakeRepo(), &fakeShop{}, &fakeElogist{})

	_, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdate{OrderID: "42", Status: "FLYING"})
	require.Error(t, err)

	_, err = svc.ApplyStatusUpdate(context.Background(), StatusUpdate{OrderID: "abc", Status: models.ElogistStatusNew})
	require.Error(t, err)

	_, err = svc.ApplyStatusUpdate(context.Background(), StatusUpdate{Status: models.ElogistStatusNew})
	require.Error(t, err)
}

func TestApplyKafkaUpdate(t *testing.T) {
	repo := newFakeRepo()
	repo.applyChanged = true
	shop := &fakeShop{}
	svc := newService(repo, shop, &fakeElogist{})

	_, err := svc.SubmitOrder(context.Background(), testOrder())
	require.NoError(t, err)
	shop.calls = nil

	err = svc.ApplyKafkaUpdate(context.Background(), messages.OrderStatusChanged{
		OrderID:   "42",
		Status:    models.ElogistStatusShipped,
		CheckedAt: time.Now().UTC(),
		Source:    messages.SourcePoll,
	})
	require.NoError(t, err)
	require.Len(t, shop.calls, 1)
	require.Equal(t, models.ShopStatusShipped, shop.calls[0].status)
}
