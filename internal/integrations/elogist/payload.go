package elogist

import "encoding/xml"

// DeliveryOrderRequest is the wire payload of the DeliveryOrder operation.
// Built by the payload package, marshalled into the SOAP body here.
type DeliveryOrderRequest struct {
	XMLName xml.Name `xml:"DeliveryOrder"`
	XMLNS   string   `xml:"xmlns,attr"`

	ProjectID     string `xml:"projectId"`
	OrderID       string `xml:"orderId"`
	OrderDateTime string `xml:"orderDateTime"`

	Recipient Recipient `xml:"recipient"`
	Shipping  Shipping  `xml:"shipping"`

	OrderItems         []OrderItem `xml:"orderItems>orderItem"`
	PackingInstruction string      `xml:"packingInstruction,omitempty"`
}

type Recipient struct {
	Name    string  `xml:"name"`
	Company string  `xml:"company,omitempty"`
	Address Address `xml:"address"`
	Phone   string  `xml:"phone,omitempty"`
	Email   string  `xml:"email,omitempty"`
}

type Address struct {
	Street   string `xml:"street"`
	City     string `xml:"city"`
	Postcode string `xml:"postcode"`
	Country  string `xml:"country"`
}

type Shipping struct {
	CarrierID string `xml:"carrierId"`
	Service   string `xml:"service"`
	BranchID  string `xml:"branchId,omitempty"`

	COD       *Money `xml:"cod,omitempty"`
	Insurance *Money `xml:"insurance,omitempty"`

	Options  []Option `xml:"options>option,omitempty"`
	Attempts int      `xml:"attempts,omitempty"`
	SendAt   string   `xml:"sendAt,omitempty"`
}

// Money carries amounts as fixed two-decimal strings, the way the vendor
// schema expects them.
type Money struct {
	Value    string `xml:"value"`
	Currency string `xml:"currency"`
}

type Option struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

// OrderItem references a known product (ProductID from the synced feed) or
// carries a full ProductSheet for items never imported.
type OrderItem struct {
	ProductID    string        `xml:"productId,omitempty"`
	ProductSheet *ProductSheet `xml:"productSheet,omitempty"`
	Quantity     int           `xml:"quantity"`
}

type ProductSheet struct {
	ProductID     string `xml:"productId"`
	Name          string `xml:"name"`
	Description   string `xml:"description,omitempty"`
	QuantityUnit  string `xml:"quantityUnit"`
	ProductNumber string `xml:"productNumber,omitempty"`
	Vendor        string `xml:"vendor,omitempty"`
}
