package models

import "time"

// OrderSyncRecord is one row of order_sync: the link between a shop order
// and its eLogist delivery order.
type OrderSyncRecord struct {
	ID              uint64     `json:"id"`
	WCOrderID       uint64     `json:"wcOrderId"`
	ElogistOrderID  string     `json:"elogistOrderId"`
	SysOrderID      *string    `json:"sysOrderId,omitempty"`
	CurrentStatus   string     `json:"currentStatus"`
	TrackingNumber  *string    `json:"trackingNumber,omitempty"`
	LastStatusCheck *time.Time `json:"lastStatusCheck,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type MetaKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type MetaList []MetaKV

// Get returns the first value for key, "" when absent.
func (m MetaList) Get(key string) string {
	for _, kv := range m {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Empty reports whether the address carries nothing usable.
func (a Address) Empty() bool {
	return a.Address1 == "" && a.City == "" && a.Postcode == ""
}

type OrderItem struct {
	ProductID   uint64   `json:"product_id"`
	VariationID uint64   `json:"variation_id,omitempty"`
	Name        string   `json:"name"`
	SKU         string   `json:"sku,omitempty"`
	Quantity    int      `json:"quantity"`
	Total       string   `json:"total,omitempty"`
	MetaData    MetaList `json:"meta_data,omitempty"`

	ShortDescription string `json:"short_description,omitempty"`
	Manufacturer     string `json:"manufacturer,omitempty"`
}

type ShippingLine struct {
	MethodID    string   `json:"method_id"`
	InstanceID  int      `json:"instance_id,omitempty"`
	MethodTitle string   `json:"method_title,omitempty"`
	MetaData    MetaList `json:"meta_data,omitempty"`
}

// ShopOrder is the order snapshot the shop posts when an order moves to
// "processing".
type ShopOrder struct {
	ID            uint64         `json:"id"`
	Number        string         `json:"number,omitempty"`
	Status        string         `json:"status"`
	Currency      string         `json:"currency"`
	Total         float64        `json:"total,string"`
	PaymentMethod string         `json:"payment_method"`
	CustomerNote  string         `json:"customer_note,omitempty"`
	DateCreated   time.Time      `json:"date_created"`
	Billing       Address        `json:"billing"`
	Shipping      *Address       `json:"shipping,omitempty"`
	ShippingLines []ShippingLine `json:"shipping_lines"`
	LineItems     []OrderItem    `json:"line_items"`
	MetaData      MetaList       `json:"meta_data,omitempty"`

	// Checkout session that placed the order, for pickup-point fallback.
	SessionID string `json:"session_id,omitempty"`
}

// RecipientAddress prefers the shipping address, falling back to billing.
func (o *ShopOrder) RecipientAddress() Address {
	if o.Shipping != nil && !o.Shipping.Empty() {
		a := *o.Shipping
		if a.Email == "" {
			a.Email = o.Billing.Email
		}
		if a.Phone == "" {
			a.Phone = o.Billing.Phone
		}
		return a
	}
	return o.Billing
}
