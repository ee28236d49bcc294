package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/logger"
	"github.com/yuditriaji/restopos-backend/pkg/metrics"
	"github.com/yuditriaji/restopos-backend/pkg/notify"
)

// Outbox queues customer notifications inside the order transaction; *notify.Dispatcher implements it
type Outbox interface {
	Enqueue(tx *gorm.DB, shopID, orderID uuid.UUID, event notify.Event, recipients map[notify.Channel]string, summary notify.OrderSummary) (int, error)
	Kick()
}

// transitions lists the states each state may move to
var transitions = map[string][]string{
	database.OrderPending: {database.OrderReady, database.OrderCancelled},
	database.OrderReady:   {database.OrderCompleted, database.OrderCancelled},
}

// CanTransition reports whether an order in from may move to to
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Engine creates orders and moves them through their lifecycle
type Engine struct {
	db     *gorm.DB
	outbox Outbox
	now    func() time.Time
}

func NewEngine(db *gorm.DB, outbox Outbox) *Engine {
	return &Engine{
		db:     db,
		outbox: outbox,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create persists the order as pending, appends grand_total to the branch sales ledger and queues the
// placed notification, all in one transaction.
func (e *Engine) Create(ctx context.Context, shopID, branchID uuid.UUID, in CreateInput) (*database.Order, error) {
	order := database.Order{
		ShopID:          shopID,
		BranchID:        branchID,
		Status:          database.OrderPending,
		Total:           in.Total,
		GrandTotal:      in.GrandTotal,
		Tax:             in.Tax,
		Discount:        in.Discount,
		DeliveryCharges: in.DeliveryCharges,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		PaymentMethod:   in.PaymentMethod,
		OrderType:       in.OrderType,
		Address:         in.Address,
		Comment:         in.Comment,
		Source:          in.Source,
	}
	for i, l := range in.Lines {
		order.Cart = append(order.Cart, database.OrderLine{
			Position:    i,
			ProductID:   l.ProductID,
			ProductName: l.Name,
			Quantity:    l.Quantity,
			Price:       l.Price,
		})
	}

	queued := 0
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shop, branch, err := loadScope(tx, shopID, branchID)
		if err != nil {
			return err
		}

		if err := tx.Create(&order).Error; err != nil {
			return apperr.Unexpected("Failed to place order", err)
		}

		entry := database.SalesEntry{
			ShopID:   shopID,
			BranchID: branchID,
			OrderID:  order.ID,
			Date:     e.now(),
			Amount:   order.GrandTotal,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return apperr.Unexpected("Failed to record sale", err)
		}

		queued, err = e.enqueue(tx, &order, shop.Name, branch.Name, notify.EventPlaced)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(order.Source).Inc()
	if queued > 0 {
		e.outbox.Kick()
	}
	logger.FromContext(ctx).Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("branch_id", branchID.String()),
		zap.String("source", order.Source),
		zap.String("grand_total", order.GrandTotal.String()),
	)
	return &order, nil
}

// TransitionOptions carries the optional details of a status change
type TransitionOptions struct {
	EstimatedTime string
	Reason        string
}

// Transition moves an order to status to. Repeating the current status is a no-op that reports
// changed=false; a move the lifecycle does not allow is a conflict. branchID uuid.Nil allows any branch
// of the shop.
func (e *Engine) Transition(ctx context.Context, shopID, branchID, orderID uuid.UUID, to string, opts TransitionOptions) (*database.Order, bool, error) {
	var (
		order   database.Order
		from    string
		changed bool
		queued  int
	)

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ? AND shop_id = ?", orderID, shopID)
		if branchID != uuid.Nil {
			query = query.Where("branch_id = ?", branchID)
		}
		if err := query.First(&order).Error; err != nil {
			return apperr.FromDB(err, "Order")
		}

		from = order.Status
		if from == to {
			return nil
		}
		if !CanTransition(from, to) {
			return apperr.Conflict("Cannot move order from %s to %s", from, to)
		}

		updates := map[string]interface{}{"status": to}
		switch to {
		case database.OrderReady:
			if opts.EstimatedTime != "" {
				updates["estimated_time"] = opts.EstimatedTime
			}
		case database.OrderCancelled:
			if opts.Reason != "" {
				updates["cancel_reason"] = opts.Reason
			}
		case database.OrderCompleted:
			updates["completed_at"] = e.now()
		}

		// compare-and-set on the status read above
		res := tx.Model(&database.Order{}).
			Where("id = ? AND status = ?", order.ID, from).
			Updates(updates)
		if res.Error != nil {
			return apperr.Unexpected("Failed to update order", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Order was modified concurrently, please retry")
		}
		changed = true

		if err := tx.First(&order, "id = ?", order.ID).Error; err != nil {
			return apperr.Unexpected("Failed to update order", err)
		}

		event, notifies := eventFor(to)
		if !notifies {
			return nil
		}
		shop, branch, err := loadScope(tx, order.ShopID, order.BranchID)
		if err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Order("position").Find(&order.Cart).Error; err != nil {
			return apperr.Unexpected("Failed to update order", err)
		}
		queued, err = e.enqueue(tx, &order, shop.Name, branch.Name, event)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		metrics.OrderTransitions.WithLabelValues(to).Inc()
		logger.FromContext(ctx).Info("order status changed",
			zap.String("order_id", order.ID.String()),
			zap.String("from", from),
			zap.String("to", to),
		)
	}
	if queued > 0 {
		e.outbox.Kick()
	}
	return &order, changed, nil
}

func eventFor(status string) (notify.Event, bool) {
	switch status {
	case database.OrderReady:
		return notify.EventReady, true
	case database.OrderCancelled:
		return notify.EventCancelled, true
	default:
		return "", false
	}
}

func loadScope(tx *gorm.DB, shopID, branchID uuid.UUID) (*database.Shop, *database.Branch, error) {
	var branch database.Branch
	if err := tx.Where("id = ? AND shop_id = ?", branchID, shopID).First(&branch).Error; err != nil {
		return nil, nil, apperr.FromDB(err, "Branch")
	}
	var shop database.Shop
	if err := tx.Select("id", "name").Where("id = ?", shopID).First(&shop).Error; err != nil {
		return nil, nil, apperr.FromDB(err, "Shop")
	}
	return &shop, &branch, nil
}

// Notifiable reports whether customers of this order get notifications: delivery orders going to an
// address outside the branch with a phone or e-mail on file.
func Notifiable(o *database.Order) bool {
	if o.OrderType != database.OrderTypeDelivery {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(o.Address), "in-branch") {
		return false
	}
	return o.CustomerPhone != "" || o.CustomerEmail != ""
}

func (e *Engine) enqueue(tx *gorm.DB, o *database.Order, shopName, branchName string, event notify.Event) (int, error) {
	if e.outbox == nil || !Notifiable(o) {
		return 0, nil
	}

	summary := notify.OrderSummary{
		OrderID:       o.ID.String(),
		ShopName:      shopName,
		BranchName:    branchName,
		CustomerName:  o.CustomerName,
		GrandTotal:    o.GrandTotal,
		Address:       o.Address,
		EstimatedTime: o.EstimatedTime,
		Reason:        o.CancelReason,
	}
	for _, l := range o.Cart {
		summary.Lines = append(summary.Lines, notify.Line{Name: l.ProductName, Quantity: l.Quantity, Price: l.Price})
	}

	n, err := e.outbox.Enqueue(tx, o.ShopID, o.ID, event, map[notify.Channel]string{
		notify.ChannelChat:  o.CustomerPhone,
		notify.ChannelEmail: o.CustomerEmail,
	}, summary)
	if err != nil {
		return 0, apperr.Unexpected("Failed to queue notification", err)
	}
	return n, nil
}

// ListFilter narrows List results
type ListFilter struct {
	BranchID uuid.UUID
	Statuses []string
	Limit    int
}

// List returns the shop's orders newest first with their cart lines
func (e *Engine) List(ctx context.Context, shopID uuid.UUID, f ListFilter) ([]database.Order, error) {
	query := e.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if f.BranchID != uuid.Nil {
		query = query.Where("branch_id = ?", f.BranchID)
	}
	if len(f.Statuses) > 0 {
		query = query.Where("status IN ?", f.Statuses)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var orders []database.Order
	err := query.
		Preload("Cart", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Unexpected("Failed to fetch orders", err)
	}
	return orders, nil
}

// Get loads one order of the shop, restricted to branchID unless it is uuid.Nil
func (e *Engine) Get(ctx context.Context, shopID, branchID, orderID uuid.UUID) (*database.Order, error) {
	query := e.db.WithContext(ctx).Where("id = ? AND shop_id = ?", orderID, shopID)
	if branchID != uuid.Nil {
		query = query.Where("branch_id = ?", branchID)
	}

	var order database.Order
	err := query.
		Preload("Cart", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&order).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Order")
	}
	return &order, nil
}
