package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"hotel-monitor/models"
)

// Failure reasons recorded on CheckinRecord.Error
const (
	ReasonNoContent = "no page content"
	ReasonNoRegion  = "room type not found on page"
	ReasonUnclear   = "availability could not be determined"
)

var (
	availableMarkers = []string{
		"残り", "空室あり", "予約する", "選択する",
		"rooms left", "room left", "book now",
		"可預訂", "剩餘", "選擇",
	}
	// whole words only, so "selected" or "reserved" do not count
	availableWords = regexp.MustCompile(`(?i)\b(?:select|reserve)\b`)
	soldOutMarkers = []string{
		"滿房", "満室", "空室なし", "客滿",
		"sold out", "no vacancy", "fully booked",
	}
	currencySymbols = []string{"NT$", "¥", "￥", "円", "$", "TWD", "JPY", "USD"}
)

// priceMatcher recognizes one way of writing a currency-tagged amount
type priceMatcher struct {
	re         *regexp.Regexp
	currency   models.Currency
	confidence models.Confidence
}

// ordered from most to least specific; bare "$" must stay last
var priceMatchers = []priceMatcher{
	{regexp.MustCompile(`NT\$\s*(\d[\d,]*)`), models.TWD, models.ConfidenceHigh},
	{regexp.MustCompile(`(?i)\bTWD\s*(\d[\d,]*)`), models.TWD, models.ConfidenceHigh},
	{regexp.MustCompile(`(?i)(\d[\d,]*)\s*TWD\b`), models.TWD, models.ConfidenceHigh},
	{regexp.MustCompile(`(?i)\bJPY\s*(\d[\d,]*)`), models.JPY, models.ConfidenceHigh},
	{regexp.MustCompile(`(?i)(\d[\d,]*)\s*JPY\b`), models.JPY, models.ConfidenceHigh},
	{regexp.MustCompile(`(\d[\d,]*)\s*円`), models.JPY, models.ConfidenceHigh},
	{regexp.MustCompile(`[¥￥]\s*(\d[\d,]*)`), models.JPY, models.ConfidenceMedium},
	{regexp.MustCompile(`(?i)(?:US\$|\bUSD)\s*(\d[\d,]*)`), models.USD, models.ConfidenceHigh},
	{regexp.MustCompile(`(?i)(\d[\d,]*)\s*USD\b`), models.USD, models.ConfidenceHigh},
	{regexp.MustCompile(`(?:^|[^A-Za-z])\$\s*(\d[\d,]*)`), models.USD, models.ConfidenceLow},
}

// PriceRules bound what counts as a plausible nightly price
type PriceRules struct {
	MinByCurrency map[models.Currency]int
	Max           int
}

// DefaultPriceRules rejects small counters ("2 rooms left") and absurd values
func DefaultPriceRules() PriceRules {
	return PriceRules{
		MinByCurrency: map[models.Currency]int{
			models.JPY: 500,
			models.TWD: 500,
			models.USD: 10,
		},
		Max: 1000000,
	}
}

// ExtractContext is everything the extractor needs besides the page itself
type ExtractContext struct {
	Date      string
	Keywords  []string
	Requested models.Currency
	// YearSentinel is rejected as a price; 0 means "the year of Date"
	YearSentinel int
}

// Extractor turns rendered page content into a CheckinRecord. It holds no
// state between calls, so the same input always yields the same record.
type Extractor struct {
	rules PriceRules
}

// NewExtractor creates an Extractor with the default price rules
func NewExtractor() *Extractor {
	return &Extractor{rules: DefaultPriceRules()}
}

// NewExtractorWithRules creates an Extractor with custom price rules
func NewExtractorWithRules(rules PriceRules) *Extractor {
	return &Extractor{rules: rules}
}

// Extract locates the target room's region and decides availability and price.
// Anything indeterminate comes back as unavailable with Error set.
func (e *Extractor) Extract(page *models.PageContent, ec ExtractContext) models.CheckinRecord {
	if page == nil {
		return models.FailedRecord(ec.Date, ReasonNoContent)
	}

	region, ok := e.findRegion(page.Regions, ec.Keywords)
	if !ok {
		return models.FailedRecord(ec.Date, ReasonNoRegion)
	}

	lower := strings.ToLower(region.Text)
	rec := models.CheckinRecord{Date: ec.Date}

	switch {
	case hasAvailableMarker(lower):
		rec.IsAvailable = true
	case containsAny(lower, soldOutMarkers):
		rec.IsAvailable = false
	case containsAny(region.Text, currencySymbols):
		// a visible price with no marker is a weak sign the room can be booked
		rec.IsAvailable = true
	default:
		return models.FailedRecord(ec.Date, ReasonUnclear)
	}

	year := ec.YearSentinel
	if year == 0 {
		year = yearOf(ec.Date)
	}
	if best, ok := bestCandidate(e.candidates(region, year), ec.Requested); ok {
		rec.Price = models.IntPtr(best.Value)
		rec.Currency = best.Currency
	}
	return rec
}

// findRegion returns the shortest region holding a keyword plus a marker or a tagged price
func (e *Extractor) findRegion(regions []models.Region, keywords []string) (models.Region, bool) {
	var best models.Region
	found := false
	for _, r := range regions {
		if !containsKeyword(r.Text, keywords) {
			continue
		}
		lower := strings.ToLower(r.Text)
		qualifies := hasAvailableMarker(lower) ||
			containsAny(lower, soldOutMarkers) ||
			len(scanText(r.Text)) > 0
		if !qualifies {
			continue
		}
		if !found || len([]rune(r.Text)) < len([]rune(best.Text)) {
			best = r
			found = true
		}
	}
	return best, found
}

// candidates scans the region and its descendants, keeping only plausible values
func (e *Extractor) candidates(region models.Region, year int) []models.MatchCandidate {
	type key struct {
		value    int
		currency models.Currency
	}
	seen := make(map[key]int)
	var out []models.MatchCandidate

	texts := append([]string{region.Text}, region.Parts...)
	for _, t := range texts {
		for _, c := range scanText(t) {
			if !e.plausible(c, year) {
				continue
			}
			k := key{c.Value, c.Currency}
			if idx, dup := seen[k]; dup {
				if c.Confidence > out[idx].Confidence {
					out[idx].Confidence = c.Confidence
				}
				continue
			}
			seen[k] = len(out)
			out = append(out, c)
		}
	}
	return out
}

func (e *Extractor) plausible(c models.MatchCandidate, year int) bool {
	if min, ok := e.rules.MinByCurrency[c.Currency]; ok && c.Value < min {
		return false
	}
	if e.rules.Max > 0 && c.Value >= e.rules.Max {
		return false
	}
	return c.Value != year
}

// scanText runs every matcher over text, without plausibility checks
func scanText(text string) []models.MatchCandidate {
	var out []models.MatchCandidate
	for _, m := range priceMatchers {
		for _, sub := range m.re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.Atoi(strings.ReplaceAll(sub[1], ",", ""))
			if err != nil {
				continue
			}
			out = append(out, models.MatchCandidate{Value: v, Currency: m.currency, Confidence: m.confidence})
		}
	}
	return out
}

// rankCandidates orders candidates: requested currency, then the cheapest
// value, then confidence, then currency code so the order is total
func rankCandidates(cands []models.MatchCandidate, requested models.Currency) []models.MatchCandidate {
	ranked := append([]models.MatchCandidate(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if (a.Currency == requested) != (b.Currency == requested) {
			return a.Currency == requested
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Currency < b.Currency
	})
	return ranked
}

func bestCandidate(cands []models.MatchCandidate, requested models.Currency) (models.MatchCandidate, bool) {
	if len(cands) == 0 {
		return models.MatchCandidate{}, false
	}
	return rankCandidates(cands, requested)[0], true
}

func containsKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func hasAvailableMarker(lower string) bool {
	return containsAny(lower, availableMarkers) || availableWords.MatchString(lower)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func yearOf(date string) int {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return 0
	}
	return t.Year()
}
