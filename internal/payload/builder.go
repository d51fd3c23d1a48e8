package payload

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/wse/elogist-sync/internal/carrier"
	"github.com/wse/elogist-sync/internal/integrations/elogist"
	"github.com/wse/elogist-sync/internal/models"
	"github.com/wse/elogist-sync/internal/pickup"
)

// Payment methods treated as cash on delivery.
var codPaymentMethods = map[string]bool{
	"cod":     true,
	"dobirka": true,
}

const (
	descriptionMaxLen  = 500
	defaultAttemptsPPL = 3
)

// ValidationError aborts one order: bad address, missing pickup point, COD
// over the carrier ceiling. It becomes an order note, never a retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order validation: %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Builder assembles DeliveryOrder payloads from shop order snapshots.
// Pure apart from the pickup resolver's session reads.
type Builder struct {
	projectID string
	resolver  *pickup.Resolver
}

func New(projectID string, resolver *pickup.Resolver) *Builder {
	return &Builder{projectID: projectID, resolver: resolver}
}

func (b *Builder) Build(ctx context.Context, o *models.ShopOrder) (*elogist.DeliveryOrderRequest, error) {
	if b.projectID == "" {
		return nil, errors.New("elogist project id is not configured")
	}
	if o.ID == 0 {
		return nil, &ValidationError{Field: "order", Reason: "missing order id"}
	}
	if len(o.ShippingLines) == 0 {
		return nil, &ValidationError{Field: "shipping", Reason: "order has no shipping line"}
	}

	addr := o.RecipientAddress()
	if addr.Address1 == "" {
		return nil, &ValidationError{Field: "address", Reason: "street is empty"}
	}
	if addr.City == "" {
		return nil, &ValidationError{Field: "address", Reason: "city is empty"}
	}
	if addr.Postcode == "" {
		return nil, &ValidationError{Field: "address", Reason: "postcode is empty"}
	}

	line := o.ShippingLines[0]
	methodID := line.MethodID
	if line.InstanceID > 0 {
		methodID = fmt.Sprintf("%s:%d", line.MethodID, line.InstanceID)
	}
	mapping, _ := carrier.Map(line.MethodID, line.InstanceID, line.MethodTitle)

	shipping := elogist.Shipping{
		CarrierID: mapping.CarrierID,
		Service:   mapping.Service,
	}

	point := b.resolver.Resolve(ctx, o, methodID, mapping.CarrierID)
	if point == "" && mapping.RequiresPickupPoint {
		return nil, &ValidationError{
			Field:  "pickup_point",
			Reason: fmt.Sprintf("no pickup point selected for %s", line.MethodID),
		}
	}
	if point != "" {
		if !pickup.ValidFormat(mapping.CarrierID, point) {
			return nil, &ValidationError{
				Field:  "pickup_point",
				Reason: fmt.Sprintf("pickup point %q has invalid format for %s", point, mapping.CarrierID),
			}
		}
		shipping.BranchID = point
	}

	if codPaymentMethods[o.PaymentMethod] {
		cod, err := buildCOD(mapping.CarrierID, o.Total, o.Currency)
		if err != nil {
			return nil, err
		}
		shipping.COD = cod
	}
	if o.Total > 0 {
		shipping.Insurance = &elogist.Money{
			Value:    formatAmount(o.Total),
			Currency: o.Currency,
		}
	}

	if mapping.CarrierID == carrier.PPL {
		shipping.Attempts = defaultAttemptsPPL
		if o.MetaData.Get("_wse_evening_delivery") == "1" {
			shipping.Options = append(shipping.Options,
				elogist.Option{Name: "evening_delivery", Value: "1"})
		}
		if w := o.MetaData.Get("_wse_delivery_time_window"); w != "" {
			shipping.Options = append(shipping.Options,
				elogist.Option{Name: "delivery_time_window", Value: w})
		}
	}
	if sendAt := o.MetaData.Get("_wse_send_at"); sendAt != "" {
		if _, err := time.Parse("2006-01-02", sendAt); err == nil {
			shipping.SendAt = sendAt
		}
	}

	items, err := buildItems(o)
	if err != nil {
		return nil, err
	}

	orderDate := o.DateCreated
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	req := &elogist.DeliveryOrderRequest{
		ProjectID:     b.projectID,
		OrderID:       strconv.FormatUint(o.ID, 10),
		OrderDateTime: orderDate.UTC().Format(time.RFC3339),
		Recipient: elogist.Recipient{
			Name:    recipientName(addr),
			Company: addr.Company,
			Address: elogist.Address{
				Street:   joinStreet(addr),
				City:     addr.City,
				Postcode: addr.Postcode,
				Country:  addr.Country,
			},
			Phone: FormatPhone(addr.Phone),
			Email: addr.Email,
		},
		Shipping:           shipping,
		OrderItems:         items,
		PackingInstruction: o.CustomerNote,
	}
	return req, nil
}

func buildCOD(carrierID string, total float64, currency string) (*elogist.Money, error) {
	ceiling, ok := carrier.CODCeiling(carrierID)
	if !ok {
		return nil, &ValidationError{
			Field:  "cod",
			Reason: fmt.Sprintf("carrier %s does not support cash on delivery", carrierID),
		}
	}
	if total > ceiling {
		return nil, &ValidationError{
			Field: "cod",
			Reason: fmt.Sprintf("amount %s exceeds %s ceiling %s",
				formatAmount(total), carrierID, formatAmount(ceiling)),
		}
	}
	return &elogist.Money{Value: formatAmount(total), Currency: currency}, nil
}

func buildItems(o *models.ShopOrder) ([]elogist.OrderItem, error) {
	if len(o.LineItems) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "order has no items"}
	}

	out := make([]elogist.OrderItem, 0, len(o.LineItems))
	for _, it := range o.LineItems {
		if it.Quantity <= 0 {
			continue
		}

		item := elogist.OrderItem{Quantity: it.Quantity}

		// Items imported from the feed are referenced by their recorded
		// variant code/id; everything else ships a full product sheet.
		switch {
		case it.MetaData.Get("_xml_variant_code") != "":
			item.ProductID = it.MetaData.Get("_xml_variant_code")
		case it.MetaData.Get("_xml_variant_id") != "":
			item.ProductID = it.MetaData.Get("_xml_variant_id")
		default:
			item.ProductSheet = &elogist.ProductSheet{
				ProductID:     productSheetID(it),
				Name:          it.Name,
				Description:   truncate(it.ShortDescription, descriptionMaxLen),
				QuantityUnit:  "PC",
				ProductNumber: it.SKU,
				Vendor:        it.Manufacturer,
			}
		}
		out = append(out, item)
	}

	if len(out) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "order has no items"}
	}
	return out, nil
}

func productSheetID(it models.OrderItem) string {
	if it.SKU != "" {
		return it.SKU
	}
	if it.VariationID > 0 {
		return strconv.FormatUint(it.VariationID, 10)
	}
	return strconv.FormatUint(it.ProductID, 10)
}

func recipientName(a models.Address) string {
	name := a.FirstName
	if a.LastName != "" {
		if name != "" {
			name += " "
		}
		name += a.LastName
	}
	return name
}

func joinStreet(a models.Address) string {
	if a.Address2 == "" {
		return a.Address1
	}
	return a.Address1 + ", " + a.Address2
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
