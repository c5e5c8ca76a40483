package report

import (
	"fmt"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"spendlens/internal/analysis"
)

// RenderPDF writes a one-page executive summary.
func RenderPDF(w io.Writer, res *analysis.Result) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Licensing Spend Executive Summary", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Licensing Spend Executive Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, "Generated "+res.GeneratedAt.Format("January 2, 2006 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Key Figures", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	facts := [][2]string{
		{"Total spend", res.TotalSpend.String()},
		{"Invoices analyzed", fmt.Sprintf("%d", res.InvoiceCount)},
		{"Vendors", fmt.Sprintf("%d", len(res.Vendors))},
		{"Overall assessment", res.Assessment},
		{"Benchmark standing", res.Comprehensive.Standing},
		{"Potential savings", res.Executive.TotalPotentialSavings.String()},
		{"Data quality score", fmt.Sprintf("%.1f%%", res.Quality.Score)},
	}
	for _, f := range facts {
		pdf.CellFormat(55, 6, tr(f[0]), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(f[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Benchmark Comparison", "", 1, "L", false, 0, "")
	widths := []float64{70, 25, 25, 25, 45}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Category", "Actual", "Typical", "Variance", "Status"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, l := range res.Benchmarks {
		row := []string{
			l.Category,
			pct(l.Comparison.Share),
			pct(l.Range.Typical),
			signedPct(l.Comparison.VariancePct),
			string(l.Comparison.Status),
		}
		for i, c := range row {
			pdf.CellFormat(widths[i], 6, tr(c), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	if len(res.Recommendations) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Recommendations", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for i, r := range res.Recommendations {
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. [%s] %s", i+1, r.Priority, r.Message)), "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// WritePDF writes the executive summary to path.
func WritePDF(path string, res *analysis.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := RenderPDF(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
