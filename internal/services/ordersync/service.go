package ordersync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/wse/elogist-sync/internal/broker/messages"
	"github.com/wse/elogist-sync/internal/cache"
	"github.com/wse/elogist-sync/internal/integrations/elogist"
	"github.com/wse/elogist-sync/internal/models"
	"github.com/wse/elogist-sync/internal/payload"
	"github.com/wse/elogist-sync/internal/storage/pgshop"
)

// ErrAlreadySubmitted means the order already has a sync record; callers
// report success without touching the vendor again.
var ErrAlreadySubmitted = errors.New("order already submitted")

type Repository interface {
	GetOrderSync(ctx context.Context, wcOrderID uint64) (*models.OrderSyncRecord, error)
	CreateOrderSync(ctx context.Context, in pgshop.OrderSyncCreate) (*models.OrderSyncRecord, error)
	ApplyOrderStatus(ctx context.Context, upd pgshop.OrderStatusUpdate) (bool, error)
	AppendLog(ctx context.Context, level, source, message string, context map[string]any) error
}

type ShopClient interface {
	UpdateOrderStatus(ctx context.Context, orderID uint64, status, note string) error
	AddOrderNote(ctx context.Context, orderID uint64, note string) error
	SetOrderMeta(ctx context.Context, orderID uint64, meta map[string]string) error
}

// StatusUpdate is one status observation, regardless of whether it came
// over the webhook, the poller or a replayed kafka message.
type StatusUpdate struct {
	OrderID    string
	Status     string
	SysOrderID *string
	TrackingNo *string
	Source     string
	CheckedAt  time.Time
}

type Service struct {
	repo      Repository
	shop      ShopClient
	elogist   elogist.Client
	builder   *payload.Builder
	cache     cache.BytesCache
	recordTTL time.Duration
}

func New(repo Repository, shop ShopClient, ec elogist.Client, builder *payload.Builder,
	c cache.BytesCache, recordTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		shop:      shop,
		elogist:   ec,
		builder:   builder,
		cache:     c,
		recordTTL: recordTTL,
	}
}

// SubmitOrder pushes one shop order to the vendor. Safe to call twice for
// the same order: the second call returns ErrAlreadySubmitted.
func (s *Service) SubmitOrder(ctx context.Context, o *models.ShopOrder) (*models.OrderSyncRecord, error) {
	if o == nil || o.ID == 0 {
		return nil, errors.New("order id is required")
	}

	existing, err := s.repo.GetOrderSync(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, ErrAlreadySubmitted
	}

	req, err := s.builder.Build(ctx, o)
	if err != nil {
		if payload.IsValidation(err) {
			s.noteFailure(ctx, o.ID, "validation", err)
		}
		return nil, err
	}

	st, err := s.elogist.DeliveryOrder(ctx, req)
	if err != nil {
		if elogist.IsDuplicateOrder(err) {
			// The vendor already has it but we have no record. Recover the
			// link instead of failing the submission.
			st, err = s.elogist.DeliveryOrderStatusGet(ctx, req.OrderID)
		}
		if err != nil {
			s.noteFailure(ctx, o.ID, "submit", err)
			return nil, errors.Wrap(err, "delivery order")
		}
	}

	status := st.Status
	if status == "" {
		status = models.ElogistStatusNew
	}
	var sysID *string
	if st.SysOrderID != "" {
		sysID = &st.SysOrderID
	}

	rec, err := s.repo.CreateOrderSync(ctx, pgshop.OrderSyncCreate{
		WCOrderID:      o.ID,
		ElogistOrderID: req.OrderID,
		SysOrderID:     sysID,
		CurrentStatus:  status,
	})
	if err != nil {
		return nil, err
	}

	_ = s.repo.AppendLog(ctx, "info", "ordersync", "order submitted", map[string]any{
		"order_id":     o.ID,
		"sys_order_id": st.SysOrderID,
		"status":       status,
	})

	// Best effort: the order is synced even if the shop call fails.
	note := "Order sent to fulfillment."
	if st.SysOrderID != "" {
		note = fmt.Sprintf("Order sent to fulfillment. System ID: %s", st.SysOrderID)
	}
	if err := s.shop.UpdateOrderStatus(ctx, o.ID, models.ShopStatusAwaitingShipment, note); err != nil {
		slog.Warn("shop status update failed after submit", "orderId", o.ID, "err", err)
	}

	s.cacheRecord(ctx, rec)
	return rec, nil
}

// ApplyStatusUpdate records a vendor status and, when it actually changed,
// pushes the mapped status to the shop. Returns whether anything changed.
// Unknown orders are a no-op: webhooks can outlive deleted orders.
func (s *Service) ApplyStatusUpdate(ctx context.Context, upd StatusUpdate) (bool, error) {
	if upd.OrderID == "" {
		return false, errors.New("order id is required")
	}
	if !models.IsElogistStatus(upd.Status) {
		return false, errors.Errorf("unknown status %q", upd.Status)
	}
	wcID, err := strconv.ParseUint(upd.OrderID, 10, 64)
	if err != nil {
		return false, errors.Errorf("order id %q is not numeric", upd.OrderID)
	}
	if upd.CheckedAt.IsZero() {
		upd.CheckedAt = time.Now().UTC()
	}

	rec, err := s.repo.GetOrderSync(ctx, wcID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		slog.Warn("status update for unknown order", "orderId", upd.OrderID, "source", upd.Source)
		return false, nil
	}

	changed, err := s.repo.ApplyOrderStatus(ctx, pgshop.OrderStatusUpdate{
		WCOrderID:      wcID,
		Status:         upd.Status,
		TrackingNumber: upd.TrackingNo,
		CheckedAt:      upd.CheckedAt,
	})
	if err != nil {
		return false, err
	}
	if !changed {
		s.invalidateRecord(ctx, wcID)
		return false, nil
	}

	_ = s.repo.AppendLog(ctx, "info", "ordersync", "order status changed", map[string]any{
		"order_id": wcID,
		"status":   upd.Status,
		"source":   upd.Source,
	})

	shopStatus, ok := models.ShopStatusFor(upd.Status)
	if ok {
		note := fmt.Sprintf("Fulfillment status: %s.", upd.Status)
		if upd.TrackingNo != nil && *upd.TrackingNo != "" {
			note = fmt.Sprintf("Fulfillment status: %s. Tracking number: %s.", upd.Status, *upd.TrackingNo)
		}
		if err := s.shop.UpdateOrderStatus(ctx, wcID, shopStatus, note); err != nil {
			slog.Warn("shop status update failed", "orderId", wcID, "status", shopStatus, "err", err)
		}
		if upd.TrackingNo != nil && *upd.TrackingNo != "" {
			if err := s.shop.SetOrderMeta(ctx, wcID, map[string]string{
				"_tracking_number": *upd.TrackingNo,
			}); err != nil {
				slog.Warn("shop tracking meta failed", "orderId", wcID, "err", err)
			}
		}
	}

	s.invalidateRecord(ctx, wcID)
	return true, nil
}

func (s *Service) ApplyKafkaUpdate(ctx context.Context, msg messages.OrderStatusChanged) error {
	_, err := s.ApplyStatusUpdate(ctx, StatusUpdate{
		OrderID:    msg.OrderID,
		Status:     msg.Status,
		SysOrderID: msg.SysOrderID,
		TrackingNo: msg.TrackingNo,
		Source:     msg.Source,
		CheckedAt:  msg.CheckedAt,
	})
	return err
}

// GetOrderSync is cache-aside over the repository.
func (s *Service) GetOrderSync(ctx context.Context, wcOrderID uint64) (*models.OrderSyncRecord, error) {
	if s.cache != nil && s.recordTTL > 0 {
		b, ok, err := s.cache.Get(ctx, recordKey(wcOrderID))
		if err == nil && ok {
			var r models.OrderSyncRecord
			if json.Unmarshal(b, &r) == nil {
				return &r, nil
			}
		}
	}
	rec, err := s.repo.GetOrderSync(ctx, wcOrderID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		s.cacheRecord(ctx, rec)
	}
	return rec, nil
}

func (s *Service) noteFailure(ctx context.Context, orderID uint64, stage string, cause error) {
	_ = s.repo.AppendLog(ctx, "error", "ordersync", "order submission failed", map[string]any{
		"order_id": orderID,
		"stage":    stage,
		"error":    cause.Error(),
	})
	note := fmt.Sprintf("Fulfillment submission failed: %s", cause.Error())
	if err := s.shop.AddOrderNote(ctx, orderID, note); err != nil {
		slog.Warn("failed to note submission error", "orderId", orderID, "err", err)
	}
}

func (s *Service) cacheRecord(ctx context.Context, rec *models.OrderSyncRecord) {
	if s.cache == nil || s.recordTTL <= 0 || rec == nil {
		return
	}
	b, _ := json.Marshal(rec)
	_ = s.cache.Set(ctx, recordKey(rec.WCOrderID), b, s.recordTTL)
}

func (s *Service) invalidateRecord(ctx context.Context, wcOrderID uint64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, recordKey(wcOrderID))
}

func recordKey(wcOrderID uint64) string {
	return fmt.Sprintf("ordersync:%d:current", wcOrderID)
}
