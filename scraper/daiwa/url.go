package daiwa

import (
	"encoding/json"
	"net/url"
	"strconv"

	"hotel-monitor/models"
)

type roomQuery struct {
	Adults int `json:"adults"`
}

// URLBuilder returns the results-page URL builder for one hotel
func URLBuilder(baseURL, hotelCode string, adults int) func(checkin, checkout string, currency models.Currency) string {
	return func(checkin, checkout string, currency models.Currency) string {
		return BuildURL(baseURL, hotelCode, checkin, checkout, adults, currency)
	}
}

// BuildURL assembles the booking results URL for a single-room stay
func BuildURL(baseURL, hotelCode, checkin, checkout string, adults int, currency models.Currency) string {
	rooms, _ := json.Marshal([]roomQuery{{Adults: adults}})

	q := url.Values{}
	q.Set("code", hotelCode)
	q.Set("checkin", checkin)
	q.Set("checkout", checkout)
	q.Set("type", "rooms")
	q.Set("is_day_use", strconv.FormatBool(false))
	q.Set("rooms", string(rooms))
	q.Set("order", "recommended")
	q.Set("is_including_occupied", strconv.FormatBool(false))
	q.Set("mcp_currency", string(currency))

	return baseURL + "?" + q.Encode()
}
