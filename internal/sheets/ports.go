package sheets

import (
	"context"
	"time"

	"spendlens/internal/analysis"
	"spendlens/internal/core"
)

// Header is the column layout written by every SummaryWriter.
var Header = []string{"Vendor", "Category", "Spend", "Share", "Status"}

// Row is one vendor/category line of the exported summary.
type Row struct {
	Vendor   string
	Category string
	Spend    core.Money
	Share    float64
	Status   string
}

// Summary is the vendor/category table pushed to a spreadsheet.
type Summary struct {
	RunID       string
	GeneratedAt time.Time
	TotalSpend  core.Money
	Rows        []Row
}

// Ports for outbound adapters.
type (
	SummaryWriter interface {
		// WriteSummary replaces the previous summary and returns a range reference.
		WriteSummary(ctx context.Context, s Summary) (ref string, err error)
	}

	SummaryReader interface {
		ReadSummary(ctx context.Context) ([]Row, error)
	}
)

// SummaryFromResult builds the export rows from the executive vendor view.
func SummaryFromResult(res *analysis.Result) Summary {
	s := Summary{
		RunID:       res.RunID,
		GeneratedAt: res.GeneratedAt,
		TotalSpend:  res.TotalSpend,
		Rows:        make([]Row, 0, len(res.Executive.Vendors)),
	}
	for _, v := range res.Executive.Vendors {
		s.Rows = append(s.Rows, Row{
			Vendor:   v.Vendor,
			Category: v.Category,
			Spend:    v.Spend,
			Share:    v.Share,
			Status:   v.Risk.Level,
		})
	}
	return s
}
