package statuspoll

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/wse/elogist-sync/internal/broker/messages"
	"github.com/wse/elogist-sync/internal/integrations/elogist"
	"github.com/wse/elogist-sync/internal/storage/pgshop"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
}

// Poller periodically asks the vendor for status changes since the last
// cursor and publishes each one for the api-side consumer. The cursor
// lives in sync_state so a restart never loses changes.
type Poller struct {
	elogist  elogist.Client
	producer Producer
	state    StateStore

	topic        string
	pollInterval time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalFetched        atomic.Int64
	totalPublished      atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(ec elogist.Client, producer Producer, state StateStore, topic string) *Poller {
	return &Poller{
		elogist:           ec,
		producer:          producer,
		state:             state,
		topic:             topic,
		pollInterval:      10 * time.Minute,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithInterval(d time.Duration) *Poller {
	if d > 0 {
		p.pollInterval = d
	}
	return p
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalFetched   int64      `json:"totalFetched"`
	TotalPublished int64      `json:"totalPublished"`
	TotalErrors    int64      `json:"totalErrors"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalFetched:   p.totalFetched.Load(),
		TotalPublished: p.totalPublished.Load(),
		TotalErrors:    p.totalErrors.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	after := p.cursor(ctx, now)

	statuses, err := p.elogist.DeliveryOrderStatusGetNews(ctx, after)
	if err != nil {
		p.fail(errors.Wrap(err, "status get news"))
		return
	}
	p.totalFetched.Add(int64(len(statuses)))

	published := 0
	for _, st := range statuses {
		if err := p.publishOne(ctx, st, now); err != nil {
			p.fail(err)
			// Keep the cursor so the failed change comes back next cycle.
			return
		}
		published++
	}
	p.totalPublished.Add(int64(published))

	// The cursor moves to the cycle start, not "now": changes arriving
	// during the vendor call must not fall between cycles.
	if err := p.state.SetState(ctx, pgshop.StateKeyStatusPollAfter, now.Format(time.RFC3339)); err != nil {
		p.fail(errors.Wrap(err, "save poll cursor"))
	}
}

// cursor defaults to an hour back when the state is missing or unreadable.
func (p *Poller) cursor(ctx context.Context, now time.Time) time.Time {
	val, ok, err := p.state.GetState(ctx, pgshop.StateKeyStatusPollAfter)
	if err != nil {
		slog.Warn("read poll cursor failed", "err", err)
		return now.Add(-time.Hour)
	}
	if !ok {
		return now.Add(-time.Hour)
	}
	after, err := time.Parse(time.RFC3339, val)
	if err != nil {
		slog.Warn("bad poll cursor", "value", val)
		return now.Add(-time.Hour)
	}
	return after
}

func (p *Poller) publishOne(ctx context.Context, st elogist.DeliveryOrderStatus, now time.Time) error {
	checkedAt := now
	if st.ChangedAt != nil {
		checkedAt = *st.ChangedAt
	}
	msg := messages.OrderStatusChanged{
		OrderID:   st.OrderID,
		Status:    st.Status,
		CheckedAt: checkedAt,
		Source:    messages.SourcePoll,
	}
	if st.SysOrderID != "" {
		msg.SysOrderID = &st.SysOrderID
	}
	if st.TrackingNo != "" {
		msg.TrackingNo = &st.TrackingNo
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	// Kafka may not be ready right after startup, so retry briefly.
	var pubErr error
	for i := 0; i < 10; i++ {
		if pubErr = p.producer.Publish(ctx, p.topic, []byte(st.OrderID), b); pubErr == nil {
			return nil
		}
		time.Sleep(time.Duration(150*(i+1)) * time.Millisecond)
	}
	return errors.Wrap(pubErr, "publish status change")
}

func (p *Poller) fail(err error) {
	p.totalErrors.Add(1)
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
	slog.Error("status poll", "error", err.Error())
}
