package messages

import "time"

// Sources of an OrderStatusChanged message.
const (
	SourcePoll    = "poll"
	SourceWebhook = "webhook"
)

// OrderStatusChanged is published by the worker's status poller and applied
// by the api-side consumer through the same path as the vendor webhook.
type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checked_at"`
	Source    string    `json:"source"`

	SysOrderID *string `json:"sys_order_id,omitempty"`
	TrackingNo *string `json:"tracking_no,omitempty"`
}
