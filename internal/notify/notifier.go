package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	billing "mhp-cloud/internal/billing/domain"
	masterdata "mhp-cloud/internal/masterdata/domain"
)

// Bill notification event kinds.
const (
	EventGenerated = "generated"
	EventOverdue   = "overdue"
	EventVoided    = "voided"
)

// LotReader loads lot metadata.
type LotReader interface {
	Get(ctx context.Context, id string) (*masterdata.Lot, error)
}

// ParkReader loads park metadata.
type ParkReader interface {
	Get(ctx context.Context, id string) (*masterdata.Park, error)
}

// Clock provides time for dedupe bookkeeping.
type Clock interface {
	Now() time.Time
}

// PortalURLResolver provides a resident portal link for a bill when available.
type PortalURLResolver func(ctx context.Context, bill *billing.UtilityBill) string

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders and delivers bill notifications via a channel. Repeated
// notifications for the same bill and event are suppressed inside the
// cooldown and dedupe windows.
type Notifier struct {
	lots         LotReader
	parks        ParkReader
	channel      Channel
	template     *Template
	clock        Clock
	portalURL    PortalURLResolver
	mu           sync.Mutex
	sent         map[string]sendRecord
	cooldown     time.Duration
	dedupeWindow time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same
// bill and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithPortalURLResolver injects a resident portal link resolver.
func WithPortalURLResolver(resolver PortalURLResolver) Option {
	return func(n *Notifier) {
		if resolver != nil {
			n.portalURL = resolver
		}
	}
}

// NewNotifier constructs a bill notifier.
func NewNotifier(lots LotReader, parks ParkReader, channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("bill notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		lots:     lots,
		parks:    parks,
		channel:  channel,
		template: template,
		clock:    systemClock{},
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NotifyBill renders and sends a notification for the bill event.
func (n *Notifier) NotifyBill(ctx context.Context, event string, bill *billing.UtilityBill) error {
	if n == nil || n.channel == nil {
		return errors.New("bill notifier: nil channel")
	}
	if bill == nil {
		return errors.New("bill notifier: nil bill")
	}
	data := n.buildTemplateData(ctx, event, bill)
	content, err := n.template.Render(data)
	if err != nil {
		return err
	}
	if !n.shouldSend(bill.ID, event, content) {
		return nil
	}
	if err := n.channel.Send(ctx, content); err != nil {
		return err
	}
	n.markSent(bill.ID, event, content)
	return nil
}

func (n *Notifier) buildTemplateData(ctx context.Context, event string, bill *billing.UtilityBill) TemplateData {
	parkName := bill.ParkID
	if n.parks != nil {
		if park, err := n.parks.Get(ctx, bill.ParkID); err == nil && park != nil && park.Name != "" {
			parkName = park.Name
		}
	}
	lotName := bill.LotID
	if n.lots != nil {
		if lot, err := n.lots.Get(ctx, bill.LotID); err == nil && lot != nil && lot.LotNumber != "" {
			lotName = lot.LotNumber
		}
	}
	portalURL := ""
	if n.portalURL != nil {
		portalURL = n.portalURL(ctx, bill)
	}
	charges := make([]ChargeLine, 0, len(bill.Charges))
	for _, charge := range bill.Charges {
		charges = append(charges, ChargeLine{
			Utility: string(charge.UtilityType),
			Amount:  formatAmount(charge.Amount),
		})
	}
	return TemplateData{
		Park:        parkName,
		ParkID:      bill.ParkID,
		Lot:         lotName,
		LotID:       bill.LotID,
		BillID:      bill.ID,
		PeriodStart: bill.Period.Start.Format("2006-01-02"),
		PeriodEnd:   bill.Period.End.Format("2006-01-02"),
		Amount:      formatAmount(bill.TotalAmount()),
		DueDate:     bill.DueDate.Format("2006-01-02"),
		Status:      string(bill.Status),
		Charges:     charges,
		PortalURL:   portalURL,
		Event:       event,
		EventLabel:  eventLabel(event),
	}
}

func eventLabel(event string) string {
	switch event {
	case EventGenerated:
		return "Ready"
	case EventOverdue:
		return "Overdue"
	case EventVoided:
		return "Voided"
	default:
		return event
	}
}

func formatAmount(value float64) string {
	return fmt.Sprintf("$%.2f", value)
}

func (n *Notifier) shouldSend(billID, event, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(billID, event)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(billID, event, content string) {
	key := notificationKey(billID, event)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(billID, event string) string {
	return billID + "|" + event
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
