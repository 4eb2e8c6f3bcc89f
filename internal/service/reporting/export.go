package reporting

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

const (
	xlsxSheet = "Entries"
	// builtin "#,##0.00"
	xlsxMoneyFormat = 4
)

var exportColumns = []string{
	"ID", "Date", "Description", "Stage", "LC Stage", "Supplier", "Type",
	"Estimate", "Qty", "Supplies Cost", "Tax/Fees", "Cost", "Invoiced Amt",
	"Posted", "L/M", "Supervisor", "Invoice #", "Delivery", "Materials", "Book #", "Notes",
}

// money columns H..M
const (
	firstMoneyCol = "H"
	lastMoneyCol  = "M"
)

func headerRow() []interface{} {
	row := make([]interface{}, len(exportColumns))
	for i, c := range exportColumns {
		row[i] = c
	}
	return row
}

// entryRow flattens an entry in exportColumns order, rendering amounts with amount.
func entryRow(e models.Entry, amount func(decimal.NullDecimal) interface{}) []interface{} {
	return []interface{}{
		e.ID,
		e.Date.String(),
		e.Description,
		e.Stage,
		e.LCStage,
		e.SupplierName,
		e.TypeLabel,
		amount(e.Estimate),
		amount(e.Qty),
		amount(e.SuppliesCost),
		amount(e.TaxFees),
		amount(e.Cost),
		amount(e.InvoicedAmt),
		string(e.Posted),
		string(e.LM),
		e.Supervisor,
		e.InvoiceNumber,
		string(e.DeliveryType),
		e.Materials,
		e.BookNumber,
		e.Notes,
	}
}

func textAmount(v decimal.NullDecimal) interface{} {
	return models.MoneyString(v)
}

// numericAmount keeps spreadsheet formulas working; empty cells stay empty.
func numericAmount(v decimal.NullDecimal) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Decimal.InexactFloat64()
}

// WriteXLSX writes every entry matching filter as a single sheet workbook.
func (s *Service) WriteXLSX(ctx context.Context, filter models.EntryFilter, w io.Writer) (int, error) {
	entries, err := s.filteredEntries(ctx, filter)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return 0, fmt.Errorf("name sheet: %w", err)
	}
	header := headerRow()
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		row := entryRow(e, numericAmount)
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return 0, fmt.Errorf("write entry %d: %w", e.ID, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: xlsxMoneyFormat})
	if err != nil {
		return 0, fmt.Errorf("money style: %w", err)
	}
	if err := f.SetColStyle(xlsxSheet, firstMoneyCol+":"+lastMoneyCol, style); err != nil {
		return 0, fmt.Errorf("apply money style: %w", err)
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return 0, fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(entries), nil
}

// filteredEntries walks every page of filter.
func (s *Service) filteredEntries(ctx context.Context, filter models.EntryFilter) ([]models.Entry, error) {
	filter.PageSize = models.MaxPageSize
	filter.Page = 1
	filter.Normalize("date", models.SortAsc)

	var out []models.Entry
	for {
		page, err := s.store.ListEntries(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Entries...)
		if page.Page >= page.TotalPages {
			return out, nil
		}
		filter.Page = page.Page + 1
	}
}
