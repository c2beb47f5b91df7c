package backend

import (
	"context"
	"log"
	"time"

	"requisition-api-server/internal/report"
)

// generateReport summarizes ledger transactions over an inclusive date window.
// When an S3 uploader is configured the summary is also exported as a
// workbook and its URL returned.
func (b *Backend) generateReport(ctx context.Context, p Params) (Result, error) {
	start := p.str("startDate")
	end := p.str("endDate")
	if start == "" || end == "" {
		return nil, validationf("startDate and endDate required")
	}
	if _, err := time.Parse("2006-01-02", start); err != nil {
		return nil, validationf("invalid startDate: %s", start)
	}
	if _, err := time.Parse("2006-01-02", end); err != nil {
		return nil, validationf("invalid endDate: %s", end)
	}

	doc, exists, err := b.Ledger.Load(ctx)
	if err != nil {
		return nil, err
	}
	summary := report.Summarize(nil, start, end)
	if exists {
		summary = report.Summarize(doc.Data.Transactions, start, end)
	}

	out := Result{
		"byType":    summary.ByType,
		"byItem":    summary.ByItem,
		"dateRange": map[string]string{"start": start, "end": end},
		"rowCount":  summary.RowCount,
		"totalQty":  summary.TotalQty,
	}
	if b.Reports != nil && b.Reports.Uploader != nil {
		url, err := b.Reports.Export(ctx, summary)
		if err != nil {
			log.Printf("report export: %v", err)
		} else if url != "" {
			out["reportUrl"] = url
		}
	}
	return out, nil
}
