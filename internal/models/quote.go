package models

// Quote is a single quotation and its attribution.
type Quote struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
}

// QuoteResponse is the caller-facing quote shape. Source is the provenance
// of the record: "upstream", "cache", "stale_cache" or "local".
type QuoteResponse struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
	Source string `json:"source"`
}
