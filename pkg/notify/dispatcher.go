package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/config"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/logger"
	"github.com/yuditriaji/restopos-backend/pkg/metrics"
)

// Dispatcher drains the notification outbox. Rows are written by Enqueue inside the caller's
// transaction and delivered after commit, so a failed send never touches the order.
type Dispatcher struct {
	db        *gorm.DB
	cfg       config.NotifyConfig
	notifiers map[Channel]Notifier
	kick      chan struct{}
	now       func() time.Time
}

// NewDispatcher registers the given notifiers by channel
func NewDispatcher(db *gorm.DB, cfg config.NotifyConfig, notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{
		db:        db,
		cfg:       cfg,
		notifiers: make(map[Channel]Notifier, len(notifiers)),
		kick:      make(chan struct{}, 1),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, n := range notifiers {
		d.notifiers[n.Channel()] = n
	}
	return d
}

// Handles reports whether a notifier is registered for ch
func (d *Dispatcher) Handles(ch Channel) bool {
	_, ok := d.notifiers[ch]
	return ok
}

// Enqueue writes one outbox row per channel that has a notifier and a non-empty recipient
func (d *Dispatcher) Enqueue(tx *gorm.DB, shopID, orderID uuid.UUID, event Event, recipients map[Channel]string, summary OrderSummary) (int, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return 0, fmt.Errorf("encode notification payload: %w", err)
	}

	queued := 0
	for ch, recipient := range recipients {
		if recipient == "" || !d.Handles(ch) {
			continue
		}
		row := database.NotificationOutbox{
			ShopID:        shopID,
			OrderID:       orderID,
			Channel:       string(ch),
			Event:         string(event),
			Recipient:     recipient,
			Payload:       string(payload),
			Status:        database.OutboxPending,
			NextAttemptAt: d.now(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return queued, fmt.Errorf("enqueue %s notification: %w", ch, err)
		}
		queued++
	}
	return queued, nil
}

// Kick asks the running loop to drain now instead of waiting for the next tick
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Start runs the dispatch loop until ctx is cancelled
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	go func() {
		defer ticker.Stop()
		d.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-d.kick:
			}
			d.RunOnce(ctx)
		}
	}()
	logger.L().Info("notification dispatcher started",
		zap.Duration("interval", d.cfg.Interval),
		zap.Int("channels", len(d.notifiers)),
	)
}

// RunOnce delivers due outbox rows and returns how many were attempted
func (d *Dispatcher) RunOnce(ctx context.Context) int {
	log := logger.FromContext(ctx)
	now := d.now()

	// a row left in processing past its lease belongs to a crashed attempt
	if err := d.db.WithContext(ctx).Model(&database.NotificationOutbox{}).
		Where("status = ? AND next_attempt_at <= ?", database.OutboxProcessing, now).
		Update("status", database.OutboxPending).Error; err != nil {
		log.Warn("failed to release stale notifications", zap.Error(err))
	}

	var due []database.NotificationOutbox
	if err := d.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", database.OutboxPending, now).
		Order("next_attempt_at").
		Limit(d.batchSize()).
		Find(&due).Error; err != nil {
		log.Error("failed to load notification outbox", zap.Error(err))
		return 0
	}

	attempted := 0
	for _, item := range due {
		claim := d.db.WithContext(ctx).Model(&database.NotificationOutbox{}).
			Where("id = ? AND status = ?", item.ID, database.OutboxPending).
			Updates(map[string]interface{}{
				"status":          database.OutboxProcessing,
				"next_attempt_at": now.Add(2 * d.cfg.SendTimeout),
			})
		if claim.Error != nil || claim.RowsAffected == 0 {
			continue
		}
		d.deliver(ctx, item)
		attempted++
	}
	return attempted
}

func (d *Dispatcher) batchSize() int {
	if d.cfg.BatchSize <= 0 {
		return 50
	}
	return d.cfg.BatchSize
}

func (d *Dispatcher) deliver(ctx context.Context, item database.NotificationOutbox) {
	log := logger.FromContext(ctx).With(
		zap.String("notification_id", item.ID.String()),
		zap.String("order_id", item.OrderID.String()),
		zap.String("channel", item.Channel),
		zap.String("event", item.Event),
	)

	result := d.send(ctx, item)
	attempts := item.Attempts + 1
	updates := map[string]interface{}{"attempts": attempts}

	switch {
	case result.Success:
		sentAt := d.now()
		updates["status"] = database.OutboxSent
		updates["sent_at"] = &sentAt
		updates["last_error"] = ""
		metrics.Notifications.WithLabelValues(item.Channel, "sent").Inc()
		log.Info("notification sent")
	case result.Error == ErrNoRecipient || result.Final || attempts >= d.cfg.MaxAttempts:
		updates["status"] = database.OutboxFailed
		updates["last_error"] = result.Error
		metrics.Notifications.WithLabelValues(item.Channel, "failed").Inc()
		log.Warn("notification failed permanently", zap.Int("attempts", attempts), zap.String("error", result.Error))
	default:
		updates["status"] = database.OutboxPending
		updates["last_error"] = result.Error
		updates["next_attempt_at"] = d.now().Add(d.backoff(attempts))
		metrics.Notifications.WithLabelValues(item.Channel, "retry").Inc()
		log.Warn("notification failed, will retry", zap.Int("attempts", attempts), zap.String("error", result.Error))
	}

	if err := d.db.WithContext(ctx).Model(&database.NotificationOutbox{}).
		Where("id = ?", item.ID).
		Updates(updates).Error; err != nil {
		log.Error("failed to record notification attempt", zap.Error(err))
	}
}

// backoff doubles the base delay for every previous attempt
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.Backoff
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

// send runs one notifier call under the send timeout and converts panics into a failed Result
func (d *Dispatcher) send(ctx context.Context, item database.NotificationOutbox) (result Result) {
	notifier, ok := d.notifiers[Channel(item.Channel)]
	if !ok {
		return Result{Error: fmt.Sprintf("no notifier for channel %q", item.Channel)}
	}

	var summary OrderSummary
	if err := json.Unmarshal([]byte(item.Payload), &summary); err != nil {
		return failed(fmt.Errorf("decode payload: %w", err))
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = Result{Error: fmt.Sprintf("notifier panic: %v", r)}
		}
	}()
	return notifier.Notify(sendCtx, item.Recipient, Event(item.Event), summary)
}
