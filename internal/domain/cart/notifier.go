package cart

import "context"

// ItemAddedNotice is the transient payload shown after an add
type ItemAddedNotice struct {
	ProductID  string
	Name       string
	Quantity   int
	TotalItems int
}

// Notifier receives fire-and-forget cart notifications
type Notifier interface {
	ItemAdded(ctx context.Context, notice ItemAddedNotice)
}

// NopNotifier discards all notifications
type NopNotifier struct{}

// ItemAdded implements Notifier
func (NopNotifier) ItemAdded(context.Context, ItemAddedNotice) {}
