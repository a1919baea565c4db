package models

// Region is one rendered element of the results page together with the
// texts of its descendants
type Region struct {
	Text  string   `json:"text"`
	Parts []string `json:"parts"`
}

// PageContent is what the page content provider hands to the extractor
type PageContent struct {
	URL      string   `json:"url"`
	FullText string   `json:"fullText"`
	Regions  []Region `json:"regions"`
}

// Confidence ranks how unambiguous a currency tag is
type Confidence int

const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
)

// MatchCandidate is one currency-tagged number found in a region
type MatchCandidate struct {
	Value      int
	Currency   Currency
	Confidence Confidence
}
