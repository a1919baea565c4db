package models

// EventKind tags a NotificationEvent variant
type EventKind string

const (
	KindRelease   EventKind = "release"
	KindPriceDrop EventKind = "price_drop"
)

// NotificationEvent is a change worth telling the user about. Events are
// produced once per run and never persisted.
type NotificationEvent interface {
	Kind() EventKind
	EventDate() string
}

// ReleaseEvent: the room became available where it previously was not (or was never seen)
type ReleaseEvent struct {
	Date     string
	Price    *int
	Currency Currency
}

func (e ReleaseEvent) Kind() EventKind   { return KindRelease }
func (e ReleaseEvent) EventDate() string { return e.Date }

// PriceDropEvent: the room stayed available in the same currency and got cheaper
type PriceDropEvent struct {
	Date     string
	OldPrice int
	NewPrice int
	Currency Currency
}

func (e PriceDropEvent) Kind() EventKind   { return KindPriceDrop }
func (e PriceDropEvent) EventDate() string { return e.Date }
