// Package report summarizes inventory ledger transactions over a date window
// and optionally exports the result as an Excel workbook to S3.
package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/s3"

	"github.com/xuri/excelize/v2"
)

// Summary aggregates the transactions falling inside [Start, End] by day.
type Summary struct {
	Start    string
	End      string
	ByType   map[string]float64
	ByItem   map[string]float64
	RowCount int
	TotalQty float64
	Rows     []models.InventoryTransaction
}

// Summarize filters transactions to the inclusive date window and totals
// quantities per transaction type and per item name. Dates compare on the
// calendar day only.
func Summarize(transactions []models.InventoryTransaction, start, end string) *Summary {
	s := &Summary{
		Start:  start,
		End:    end,
		ByType: map[string]float64{},
		ByItem: map[string]float64{},
	}
	for _, tx := range transactions {
		if tx.Date.IsZero() {
			continue
		}
		day := tx.Date.UTC().Format("2006-01-02")
		if day < start || day > end {
			continue
		}
		s.RowCount++
		txType := tx.Type
		if txType == "" {
			txType = "unknown"
		}
		s.ByType[txType] += tx.Quantity
		itemName := tx.ItemName
		if itemName == "" {
			itemName = tx.Category
		}
		if itemName == "" {
			itemName = txType
		}
		s.ByItem[itemName] += tx.Quantity
		s.TotalQty += tx.Quantity
		s.Rows = append(s.Rows, tx)
	}
	return s
}

// Builder renders summaries into workbooks. A nil Uploader disables the S3
// artifact and Export returns an empty URL.
type Builder struct {
	Uploader *s3.Uploader
}

func NewBuilder(uploader *s3.Uploader) *Builder {
	return &Builder{Uploader: uploader}
}

// Workbook renders the summary as an xlsx file with a transaction sheet and a
// totals sheet.
func (b *Builder) Workbook(s *Summary) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, "Transactions"); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sheet = "Transactions"

	header := []interface{}{"id", "date", "type", "category", "item", "quantity", "requestId"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	row := 2
	for _, tx := range s.Rows {
		excelRow := []interface{}{
			tx.ID,
			tx.Date.UTC().Format("2006-01-02"),
			tx.Type,
			tx.Category,
			tx.ItemName,
			tx.Quantity,
			tx.RequestID,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
		row++
	}

	totals, err := f.NewSheet("Totals")
	if err != nil {
		return nil, fmt.Errorf("totals sheet: %w", err)
	}
	_ = totals
	totalsHeader := []interface{}{"group", "key", "quantity"}
	if err := f.SetSheetRow("Totals", "A1", &totalsHeader); err != nil {
		return nil, fmt.Errorf("totals header: %w", err)
	}
	row = 2
	for _, group := range []struct {
		name   string
		totals map[string]float64
	}{
		{"type", s.ByType},
		{"item", s.ByItem},
	} {
		keys := make([]string, 0, len(group.totals))
		for k := range group.totals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			excelRow := []interface{}{group.name, k, group.totals[k]}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetSheetRow("Totals", cell, &excelRow); err != nil {
				return nil, fmt.Errorf("totals row: %w", err)
			}
			row++
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export builds the workbook and uploads it, returning the object URL.
func (b *Builder) Export(ctx context.Context, s *Summary) (string, error) {
	if b == nil || b.Uploader == nil {
		return "", nil
	}
	buf, err := b.Workbook(s)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("reports/issues-%s-to-%s-%d.xlsx", s.Start, s.End, time.Now().Unix())
	return b.Uploader.UploadFile(ctx, bytes.NewReader(buf.Bytes()), key, xlsxContentType)
}
