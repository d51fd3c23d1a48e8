package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/wse/elogist-sync/internal/integrations/elogist"
	"github.com/wse/elogist-sync/internal/models"
)

// FakeClient is a local stand-in for the eLogist sandbox. Statuses are
// deterministic per order id so repeated polls behave consistently.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) CarrierListGet(ctx context.Context) ([]elogist.Carrier, error) {
	return []elogist.Carrier{
		{CarrierID: "PPL", Name: "PPL CZ"},
		{CarrierID: "ZASILKOVNA", Name: "Zásilkovna"},
		{CarrierID: "DPD-CZ", Name: "DPD CZ"},
		{CarrierID: "CPOST", Name: "Česká pošta"},
	}, nil
}

func (f *FakeClient) DeliveryOrder(ctx context.Context, req *elogist.DeliveryOrderRequest) (*elogist.DeliveryOrderStatus, error) {
	now := time.Now().UTC()
	return &elogist.DeliveryOrderStatus{
		OrderID:    req.OrderID,
		SysOrderID: fmt.Sprintf("EL-%s", req.OrderID),
		Status:     models.ElogistStatusNew,
		ChangedAt:  &now,
	}, nil
}

func (f *FakeClient) DeliveryOrderStatusGet(ctx context.Context, orderID string) (*elogist.DeliveryOrderStatus, error) {
	now := time.Now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	v := h.Sum32()

	// A fifth of the orders are delivered, the rest keep moving.
	status := models.ElogistStatusShipped
	tracking := fmt.Sprintf("FAKE%08d", v%100000000)
	if v%5 == 0 {
		status = models.ElogistStatusDelivered
	}

	return &elogist.DeliveryOrderStatus{
		OrderID:    orderID,
		SysOrderID: fmt.Sprintf("EL-%s", orderID),
		Status:     status,
		TrackingNo: tracking,
		ChangedAt:  &now,
	}, nil
}

func (f *FakeClient) DeliveryOrderStatusGetNews(ctx context.Context, after time.Time) ([]elogist.DeliveryOrderStatus, error) {
	return []elogist.DeliveryOrderStatus{}, nil
}
