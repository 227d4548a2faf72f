package models

// UsageCounter is the persisted daily counter, stored as JSON under one key
// per tracked activity.
type UsageCounter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// UsageSummary is returned to clients describing one activity's quota.
type UsageSummary struct {
	Activity  string `json:"activity"`
	Date      string `json:"date"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}
