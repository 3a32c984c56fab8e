package realtime

// Observer receives realtime fan-out events (used for metrics).
type Observer interface {
	SubscriberJoined()
	SubscriberLeft()
	SignalPublished(event string, delivered, dropped int)
}

type nopObserver struct{}

func (nopObserver) SubscriberJoined() {}

func (nopObserver) SubscriberLeft() {}

func (nopObserver) SignalPublished(string, int, int) {}
