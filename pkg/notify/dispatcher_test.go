package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/config"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/database/dbtest"
)

type fakeNotifier struct {
	mu      sync.Mutex
	channel Channel
	results []Result
	calls   []string
	panics  bool
}

func (f *fakeNotifier) Channel() Channel { return f.channel }

func (f *fakeNotifier) Notify(ctx context.Context, recipient string, event Event, summary OrderSummary) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recipient+":"+string(event))
	if f.panics {
		panic("boom")
	}
	if len(f.results) == 0 {
		return ok()
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDispatcher(t *testing.T, notifiers ...Notifier) (*Dispatcher, *gorm.DB, *fakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	cfg := config.NotifyConfig{
		Interval:    time.Second,
		SendTimeout: time.Second,
		MaxAttempts: 3,
		BatchSize:   10,
		Backoff:     30 * time.Second,
	}
	d := NewDispatcher(db, cfg, notifiers...)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	d.now = clock.now
	return d, db, clock
}

func enqueue(t *testing.T, d *Dispatcher, db *gorm.DB, recipients map[Channel]string) uuid.UUID {
	t.Helper()
	orderID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := d.Enqueue(tx, uuid.New(), orderID, EventPlaced, recipients, OrderSummary{OrderID: orderID.String()})
		return err
	})
	require.NoError(t, err)
	return orderID
}

func outboxRows(t *testing.T, db *gorm.DB, orderID uuid.UUID) []database.NotificationOutbox {
	t.Helper()
	var rows []database.NotificationOutbox
	require.NoError(t, db.Where("order_id = ?", orderID).Order("channel").Find(&rows).Error)
	return rows
}

func TestEnqueueSkipsUnhandledAndEmptyRecipients(t *testing.T) {
	chat := &fakeNotifier{channel: ChannelChat}
	d, db, _ := newTestDispatcher(t, chat)

	orderID := enqueue(t, d, db, map[Channel]string{
		ChannelChat:  "03001234567",
		ChannelEmail: "ali@example.com",
	})
	rows := outboxRows(t, db, orderID)
	require.Len(t, rows, 1)
	assert.Equal(t, string(ChannelChat), rows[0].Channel)
	assert.Equal(t, database.OutboxPending, rows[0].Status)

	orderID = enqueue(t, d, db, map[Channel]string{ChannelChat: ""})
	assert.Empty(t, outboxRows(t, db, orderID))
}

func TestRunOnceMarksSent(t *testing.T) {
	chat := &fakeNotifier{channel: ChannelChat}
	mail := &fakeNotifier{channel: ChannelEmail}
	d, db, _ := newTestDispatcher(t, chat, mail)

	orderID := enqueue(t, d, db, map[Channel]string{
		ChannelChat:  "03001234567",
		ChannelEmail: "ali@example.com",
	})

	assert.Equal(t, 2, d.RunOnce(context.Background()))
	assert.Equal(t, []string{"03001234567:placed"}, chat.calls)
	assert.Equal(t, []string{"ali@example.com:placed"}, mail.calls)

	for _, row := range outboxRows(t, db, orderID) {
		assert.Equal(t, database.OutboxSent, row.Status)
		assert.Equal(t, 1, row.Attempts)
		assert.NotNil(t, row.SentAt)
	}

	// nothing left to do
	assert.Equal(t, 0, d.RunOnce(context.Background()))
}

func TestRunOnceRetriesWithBackoffThenFails(t *testing.T) {
	chat := &fakeNotifier{channel: ChannelChat, results: []Result{
		failed(errors.New("timeout")),
		failed(errors.New("timeout")),
		failed(errors.New("timeout")),
	}}
	d, db, clock := newTestDispatcher(t, chat)
	orderID := enqueue(t, d, db, map[Channel]string{ChannelChat: "03001234567"})

	require.Equal(t, 1, d.RunOnce(context.Background()))
	row := outboxRows(t, db, orderID)[0]
	assert.Equal(t, database.OutboxPending, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.Equal(t, "timeout", row.LastError)

	// not due until the backoff elapses
	clock.advance(10 * time.Second)
	assert.Equal(t, 0, d.RunOnce(context.Background()))

	clock.advance(25 * time.Second)
	require.Equal(t, 1, d.RunOnce(context.Background()))
	assert.Equal(t, 2, outboxRows(t, db, orderID)[0].Attempts)

	clock.advance(61 * time.Second)
	require.Equal(t, 1, d.RunOnce(context.Background()))
	row = outboxRows(t, db, orderID)[0]
	assert.Equal(t, database.OutboxFailed, row.Status)
	assert.Equal(t, 3, row.Attempts)
	assert.Len(t, chat.calls, 3)
}

func TestRunOnceNoRecipientIsTerminal(t *testing.T) {
	chat := &fakeNotifier{channel: ChannelChat, results: []Result{{Error: ErrNoRecipient}}}
	d, db, _ := newTestDispatcher(t, chat)
	orderID := enqueue(t, d, db, map[Channel]string{ChannelChat: "03001234567"})

	d.RunOnce(context.Background())
	row := outboxRows(t, db, orderID)[0]
	assert.Equal(t, database.OutboxFailed, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.Equal(t, ErrNoRecipient, row.LastError)
}

func TestRunOnceFinalFailureIsNotRetried(t *testing.T) {
	mail := &fakeNotifier{channel: ChannelEmail, results: []Result{{Error: "deadline", Final: true}}}
	d, db, clock := newTestDispatcher(t, mail)
	orderID := enqueue(t, d, db, map[Channel]string{ChannelEmail: "ali@example.com"})

	d.RunOnce(context.Background())
	row := outboxRows(t, db, orderID)[0]
	assert.Equal(t, database.OutboxFailed, row.Status)
	assert.Equal(t, 1, row.Attempts)

	clock.advance(time.Hour)
	assert.Zero(t, d.RunOnce(context.Background()))
	assert.Len(t, mail.calls, 1)
}

func TestRunOnceRecoversNotifierPanic(t *testing.T) {
	chat := &fakeNotifier{channel: ChannelChat, panics: true}
	d, db, _ := newTestDispatcher(t, chat)
	orderID := enqueue(t, d, db, map[Channel]string{ChannelChat: "03001234567"})

	require.NotPanics(t, func() { d.RunOnce(context.Background()) })
	row := outboxRows(t, db, orderID)[0]
	assert.Equal(t, database.OutboxPending, row.Status)
	assert.Contains(t, row.LastError, "notifier panic")
}

func TestRunOnceReleasesStaleClaims(t *testing.T) {
	chat := &fakeNotifier{channel: ChannelChat}
	d, db, clock := newTestDispatcher(t, chat)
	orderID := enqueue(t, d, db, map[Channel]string{ChannelChat: "03001234567"})

	// simulate a crash after the claim
	require.NoError(t, db.Model(&database.NotificationOutbox{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"status":          database.OutboxProcessing,
			"next_attempt_at": clock.now().Add(2 * time.Second),
		}).Error)

	assert.Equal(t, 0, d.RunOnce(context.Background()))

	clock.advance(3 * time.Second)
	assert.Equal(t, 1, d.RunOnce(context.Background()))
	assert.Equal(t, database.OutboxSent, outboxRows(t, db, orderID)[0].Status)
}

func TestBackoffDoubles(t *testing.T) {
	d := &Dispatcher{cfg: config.NotifyConfig{Backoff: 10 * time.Second}}
	assert.Equal(t, 10*time.Second, d.backoff(1))
	assert.Equal(t, 20*time.Second, d.backoff(2))
	assert.Equal(t, 40*time.Second, d.backoff(3))
}
