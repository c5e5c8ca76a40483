package storage

type AnalysisRecord struct {
	ID           string
	Vendor       string
	InvoiceDate  string
	TotalAmount  float64
	AnalysisHash string
	ApiCostUsd   float64
	TokensUsed   int64
	CreatedAt    string
	LastAccessed string
	AnalysisData string
}

type ApiCall struct {
	ID           int64
	Timestamp    string
	Vendor       string
	TokensUsed   int64
	CostUsd      float64
	CacheHit     bool
	AnalysisHash string
}

type CostMetric struct {
	ID             int64
	SnapshotAt     string
	TotalApiCalls  int64
	TotalTokens    int64
	TotalCostUsd   float64
	CacheHits      int64
	CacheMisses    int64
	CostSavingsUsd float64
}
