package elogist

import (
	"context"
	"fmt"
	"time"
)

// Carrier is one entry of CarrierListGet.
type Carrier struct {
	CarrierID string
	Name      string
}

// DeliveryOrderStatus is the vendor's view of one delivery order.
type DeliveryOrderStatus struct {
	OrderID    string
	SysOrderID string
	Status     string
	TrackingNo string
	ChangedAt  *time.Time
}

type Client interface {
	CarrierListGet(ctx context.Context) ([]Carrier, error)
	DeliveryOrder(ctx context.Context, req *DeliveryOrderRequest) (*DeliveryOrderStatus, error)
	DeliveryOrderStatusGet(ctx context.Context, orderID string) (*DeliveryOrderStatus, error)
	DeliveryOrderStatusGetNews(ctx context.Context, after time.Time) ([]DeliveryOrderStatus, error)
}

const resultCodeOK = 1000

// Result codes the vendor documents. Anything unlisted surfaces as-is.
var resultCodeMessages = map[int]string{
	1001: "unknown project",
	1002: "unknown product",
	1005: "duplicate order id",
	1013: "unknown carrier or service",
	1014: "invalid postcode for carrier",
	1020: "missing recipient contact",
	1028: "carrier does not support COD",
	1030: "invalid COD amount",
	1050: "authentication failed",
	2000: "internal eLogist error",
}

// APIError is a non-1000 result from a SOAP operation.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	if msg, ok := resultCodeMessages[e.Code]; ok {
		return fmt.Sprintf("elogist: %s (code %d): %s", msg, e.Code, e.Description)
	}
	return fmt.Sprintf("elogist: result code %d: %s", e.Code, e.Description)
}

// IsDuplicateOrder reports the duplicate-submission result, which callers
// treat as already-synced rather than a failure.
func IsDuplicateOrder(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Code == 1005
	}
	return false
}
