package services

import "hotel-monitor/models"

// Summary holds computed figures over one snapshot
type Summary struct {
	TotalDates     int
	AvailableDates int
	FailedDates    int
	// Cheapest available date per currency
	Cheapest map[models.Currency]models.CheckinRecord
}

// Summarize computes the digest figures from a snapshot
func Summarize(snap models.Snapshot) Summary {
	s := Summary{Cheapest: make(map[models.Currency]models.CheckinRecord)}

	for _, date := range snap.Dates() {
		rec := snap[date]
		rec.Date = date
		s.TotalDates++
		if rec.Error != "" {
			s.FailedDates++
		}
		if !rec.IsAvailable {
			continue
		}
		s.AvailableDates++

		if !rec.HasPrice() {
			continue
		}
		// dates are ascending, so ties keep the earliest date
		if best, ok := s.Cheapest[rec.Currency]; !ok || *rec.Price < *best.Price {
			s.Cheapest[rec.Currency] = rec
		}
	}

	return s
}
