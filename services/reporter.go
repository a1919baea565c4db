package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"hotel-monitor/models"
	"hotel-monitor/utils"
)

// FormatPrice renders a price with its currency symbol, or "unknown"
func FormatPrice(price *int, currency models.Currency) string {
	if price == nil {
		return "unknown"
	}
	return currency.Symbol() + utils.FormatThousands(*price)
}

// FormatEvents builds the change notification mail, one line per event
func FormatEvents(hotel, room string, events []models.NotificationEvent) (subject, body string) {
	subject = fmt.Sprintf("[%s] %s availability / price change", hotel, room)

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		switch e := ev.(type) {
		case models.ReleaseEvent:
			lines = append(lines, fmt.Sprintf("[Release] %s price: %s", e.Date, FormatPrice(e.Price, e.Currency)))
		case models.PriceDropEvent:
			lines = append(lines, fmt.Sprintf("[Price drop] %s %s → %s", e.Date,
				FormatPrice(&e.OldPrice, e.Currency), FormatPrice(&e.NewPrice, e.Currency)))
		}
	}
	return subject, strings.Join(lines, "\n")
}

// FormatDigest builds the scheduled status report, sent regardless of changes
func FormatDigest(hotel, room string, snap models.Snapshot, now time.Time) (subject, body string) {
	subject = fmt.Sprintf("[Scheduled report] %s %s status", hotel, room)

	lines := []string{
		fmt.Sprintf("[Scheduled report] %s", now.Format("2006-01-02 15:04 MST")),
		"",
		fmt.Sprintf("=== %s %s status ===", hotel, room),
		"",
	}
	for _, date := range snap.Dates() {
		lines = append(lines, digestLine(date, snap[date]))
	}

	sum := Summarize(snap)
	lines = append(lines, "", fmt.Sprintf("Available: %d/%d dates", sum.AvailableDates, sum.TotalDates))
	for _, cur := range models.SupportedCurrencies {
		if rec, ok := sum.Cheapest[cur]; ok {
			lines = append(lines, fmt.Sprintf("Cheapest (%s): %s on %s", cur, FormatPrice(rec.Price, rec.Currency), rec.Date))
		}
	}

	lines = append(lines,
		"",
		"This report is sent automatically twice a day.",
		"Room releases and price drops are notified separately as soon as they are seen.",
	)
	return subject, strings.Join(lines, "\n")
}

func digestLine(date string, rec models.CheckinRecord) string {
	status := "sold out"
	if rec.IsAvailable {
		status = "available"
	}
	line := fmt.Sprintf("%s: %s | price: %s", date, status, FormatPrice(rec.Price, rec.Currency))
	if rec.Error != "" {
		line += " (" + rec.Error + ")"
	}
	return line
}

// PrintRunReport writes a terminal summary of a finished run
func PrintRunReport(w io.Writer, report *models.RunReport) {
	border := strings.Repeat("═", 55)
	thin := strings.Repeat("─", 55)

	fmt.Fprintf(w, "\n╔%s╗\n", border)
	fmt.Fprintf(w, "║%s║\n", center("HOTEL AVAILABILITY RUN", 55))
	fmt.Fprintf(w, "╚%s╝\n", border)

	fmt.Fprintf(w, "\n RUN\n%s\n", thin)
	fmt.Fprintf(w, "  Run ID     : %s\n", report.RunID)
	fmt.Fprintf(w, "  Duration   : %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	fmt.Fprintf(w, "  Failed     : %d\n", report.Failed)
	fmt.Fprintf(w, "  Digest     : %v\n", report.DigestSent)

	PrintSnapshot(w, report.Snapshot)

	fmt.Fprintf(w, "\n EVENTS\n%s\n", thin)
	if len(report.Events) == 0 {
		fmt.Fprintln(w, "  No new notifications")
	} else {
		_, body := FormatEvents("", "", report.Events)
		for _, line := range strings.Split(body, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintf(w, "\n%s\n\n", border)
}

// PrintSnapshot writes one status line per date
func PrintSnapshot(w io.Writer, snap models.Snapshot) {
	thin := strings.Repeat("─", 55)
	fmt.Fprintf(w, "\n STATUS\n%s\n", thin)
	if len(snap) == 0 {
		fmt.Fprintln(w, "  No data yet")
		return
	}
	for _, date := range snap.Dates() {
		rec := snap[date]
		mark := "✗"
		if rec.IsAvailable {
			mark = "✓"
		}
		line := fmt.Sprintf("  %s %s  %-12s", mark, date, FormatPrice(rec.Price, rec.Currency))
		if rec.Error != "" {
			line += "  " + truncate(rec.Error, 28)
		}
		fmt.Fprintln(w, line)
	}
}

func center(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	pad := (width - len(runes)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-len(runes)-pad)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
