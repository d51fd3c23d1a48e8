package models

// Fulfillment-side order statuses as eLogist reports them.
const (
	ElogistStatusNew       = "NEW"
	ElogistStatusSuspended = "SUSPENDED"
	ElogistStatusCancelled = "CANCELLED"
	ElogistStatusShipped   = "SHIPPED"
	ElogistStatusDelivered = "DELIVERED"
	ElogistStatusAbandoned = "ABANDONED"
)

// Shop-side order statuses this service drives.
const (
	ShopStatusProcessing       = "processing"
	ShopStatusAwaitingShipment = "awaiting-shipment"
	ShopStatusOnHold           = "on-hold"
	ShopStatusCancelled        = "cancelled"
	ShopStatusShipped          = "shipped"
	ShopStatusCompleted        = "completed"
	ShopStatusFailed           = "failed"
)

var elogistToShopStatus = map[string]string{
	ElogistStatusNew:       ShopStatusAwaitingShipment,
	ElogistStatusSuspended: ShopStatusOnHold,
	ElogistStatusCancelled: ShopStatusCancelled,
	ElogistStatusShipped:   ShopStatusShipped,
	ElogistStatusDelivered: ShopStatusCompleted,
	ElogistStatusAbandoned: ShopStatusFailed,
}

// ShopStatusFor maps a fulfillment status to the shop order status.
// ok=false means the status is not one we act on.
func ShopStatusFor(elogistStatus string) (string, bool) {
	s, ok := elogistToShopStatus[elogistStatus]
	return s, ok
}

func IsElogistStatus(s string) bool {
	_, ok := elogistToShopStatus[s]
	return ok
}
