package core

// NamedAmount is an amount aggregated under a name (vendor, category, company, month).
type NamedAmount struct {
	Name   string  `json:"name"`
	Amount Money   `json:"amount"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

// PeriodAmount is an amount for a time bucket with the change from the previous bucket.
type PeriodAmount struct {
	Period        string  `json:"period"`
	Amount        Money   `json:"amount"`
	Count         int     `json:"count"`
	ChangePercent float64 `json:"change_percent"`
	HasChange     bool    `json:"has_change"`
}
