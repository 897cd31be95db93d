package marketstatus

import "context"

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event StatusEvent)

// NotifyStatusChanged implements Notifier.
func (f NotifierFunc) NotifyStatusChanged(ctx context.Context, event StatusEvent) {
	f(ctx, event)
}

type multiNotifier []Notifier

// NewMultiNotifier fans a status transition out to several notifiers.
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	filtered := make(multiNotifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// NotifyStatusChanged implements Notifier.
func (m multiNotifier) NotifyStatusChanged(ctx context.Context, event StatusEvent) {
	for _, n := range m {
		n.NotifyStatusChanged(ctx, event)
	}
}
