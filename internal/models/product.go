package models

import "time"

const (
	ProductTypeSimple    = "simple"
	ProductTypeVariable  = "variable"
	ProductTypeVariation = "variation"
)

const (
	SyncStatusSynced = "synced"
	SyncStatusError  = "error"
)

// ProductMapping links one feed item (or one of its variants) to the shop
// catalog. Variants carry their XMLVariantID; the product row has it empty.
type ProductMapping struct {
	ID            uint64
	XMLGUID       string
	XMLVariantID  string
	XMLID         string
	XMLCode       string
	ShopProductID uint64
	ProductType   string
	SyncStatus    string
	LastSyncAt    time.Time
}
