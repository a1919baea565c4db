package models

import (
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical check-in date format (YYYY/MM/DD)
const DateLayout = "2006/01/02"

// Currency is an ISO 4217 code of a supported display currency
type Currency string

const (
	JPY Currency = "JPY"
	TWD Currency = "TWD"
	USD Currency = "USD"
)

// SupportedCurrencies lists every currency the extractor understands
var SupportedCurrencies = []Currency{JPY, TWD, USD}

// ParseCurrency normalizes a currency code, reporting whether it is supported
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, sc := range SupportedCurrencies {
		if c == sc {
			return c, true
		}
	}
	return "", false
}

// Symbol returns the display prefix used in notifications
func (c Currency) Symbol() string {
	switch c {
	case JPY:
		return "¥"
	case TWD:
		return "NT$"
	case USD:
		return "US$"
	}
	return ""
}

// CheckinRecord is the observed state of the target room for one check-in date.
// The JSON shape is read by the status dashboard and must stay stable.
type CheckinRecord struct {
	Date        string   `json:"-"`
	IsAvailable bool     `json:"isAvailable"`
	Price       *int     `json:"price"`
	Currency    Currency `json:"currency,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// HasPrice reports whether a price was observed
func (r CheckinRecord) HasPrice() bool {
	return r.Price != nil
}

// PriceValue returns the price or 0 when absent
func (r CheckinRecord) PriceValue() int {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}

// FailedRecord builds the conservative record used when a date could not be determined
func FailedRecord(date string, reason string) CheckinRecord {
	return CheckinRecord{Date: date, IsAvailable: false, Error: reason}
}

// IntPtr is a small helper for building records with a price
func IntPtr(v int) *int {
	return &v
}

// Snapshot maps a check-in date to its last observed record
type Snapshot map[string]CheckinRecord

// Dates returns the snapshot keys in ascending date order
func (s Snapshot) Dates() []string {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	// YYYY/MM/DD sorts lexicographically in date order
	sort.Strings(dates)
	return dates
}

// Clone returns a shallow copy safe to mutate
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		if v.Price != nil {
			v.Price = IntPtr(*v.Price)
		}
		out[k] = v
	}
	return out
}

// RunReport summarizes one monitoring run
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Snapshot   Snapshot
	Events     []NotificationEvent
	DigestSent bool
	Failed     int
}
