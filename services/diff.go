package services

import "hotel-monitor/models"

// Diff compares the previous snapshot with the current one and returns the
// events worth notifying, in ascending date order. At most one event per date.
func Diff(previous, current models.Snapshot) []models.NotificationEvent {
	var events []models.NotificationEvent

	for _, date := range current.Dates() {
		cur := current[date]
		if !cur.IsAvailable {
			continue
		}

		prev, seen := previous[date]
		if !seen || !prev.IsAvailable {
			events = append(events, models.ReleaseEvent{
				Date:     date,
				Price:    cur.Price,
				Currency: cur.Currency,
			})
			continue
		}

		if cur.HasPrice() && prev.HasPrice() &&
			cur.Currency == prev.Currency &&
			*cur.Price < *prev.Price {
			events = append(events, models.PriceDropEvent{
				Date:     date,
				OldPrice: *prev.Price,
				NewPrice: *cur.Price,
				Currency: cur.Currency,
			})
		}
	}

	return events
}
