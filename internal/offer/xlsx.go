package offer

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	offerSheet = "Offer"
	notesSheet = "Notes"
)

// WriteXLSX renders o as a workbook with an offer sheet (lines and summary)
// and a notes sheet (narrative sections).
func WriteXLSX(o Offer) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), offerSheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	if _, err := f.NewSheet(notesSheet); err != nil {
		return nil, fmt.Errorf("create notes sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	if err := writeOffer(f, o, styles); err != nil {
		return nil, err
	}
	if err := writeNotes(f, o, styles); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type styles struct {
	title  int
	header int
	money  int
	bold   int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error

	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}); err != nil {
		return s, fmt.Errorf("create title style: %w", err)
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, fmt.Errorf("create header style: %w", err)
	}
	moneyFmt := "#,##0.00"
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt}); err != nil {
		return s, fmt.Errorf("create money style: %w", err)
	}
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFmt}); err != nil {
		return s, fmt.Errorf("create bold style: %w", err)
	}
	return s, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeOffer(f *excelize.File, o Offer, st styles) error {
	set := func(col, row int, v any) {
		_ = f.SetCellValue(offerSheet, cell(col, row), v)
	}
	style := func(fromCol, toCol, row, id int) {
		_ = f.SetCellStyle(offerSheet, cell(fromCol, row), cell(toCol, row), id)
	}

	for i, w := range []float64{6, 48, 10, 16, 16} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(offerSheet, col, col, w); err != nil {
			return fmt.Errorf("set column width %s: %w", col, err)
		}
	}

	set(1, 1, sanitizeCell(o.Meta.Title))
	style(1, 1, 1, st.title)
	if o.Meta.Reference != "" {
		set(1, 2, "Reference: "+o.Meta.Reference)
	}
	if !o.Meta.Date.IsZero() {
		set(1, 3, "Date: "+o.Meta.Date.Format("2006-01-02"))
	}

	const headerRow = 5
	for i, h := range []string{"#", "Description", "Qty", "Unit price", "Amount"} {
		set(i+1, headerRow, h)
	}
	style(1, 5, headerRow, st.header)

	row := headerRow + 1
	for _, l := range o.Lines {
		set(1, row, l.Position)
		set(2, row, sanitizeCell(l.Description))
		set(3, row, l.Quantity.InexactFloat64())
		set(4, row, l.UnitPrice.InexactFloat64())
		set(5, row, l.Amount.InexactFloat64())
		style(4, 5, row, st.money)
		row++
	}

	row++
	s := o.Summary
	summary := []struct {
		label string
		value float64
	}{
		{"Sale price excl. VAT", s.SaleExclVAT.InexactFloat64()},
		{fmt.Sprintf("Discount (%s%%)", s.DiscountPercentage.String()), s.Discount.Neg().InexactFloat64()},
		{"Net price", s.Net.InexactFloat64()},
		{fmt.Sprintf("VAT (%s%%)", s.VATPercentage.String()), s.VAT.InexactFloat64()},
		{"Total " + o.Meta.Currency, s.Total.InexactFloat64()},
	}
	for i, line := range summary {
		set(4, row, line.label)
		set(5, row, line.value)
		id := st.money
		if i == len(summary)-1 {
			id = st.bold
		}
		style(5, 5, row, id)
		row++
	}
	return nil
}

func writeNotes(f *excelize.File, o Offer, st styles) error {
	if err := f.SetColWidth(notesSheet, "A", "A", 100); err != nil {
		return fmt.Errorf("set notes column width: %w", err)
	}

	row := 1
	for _, sec := range o.Sections {
		heading := sec.Heading
		if sec.Internal {
			heading += " (internal)"
		}
		_ = f.SetCellValue(notesSheet, cell(1, row), heading)
		_ = f.SetCellStyle(notesSheet, cell(1, row), cell(1, row), st.bold)
		row++
		for _, line := range sec.Lines {
			_ = f.SetCellValue(notesSheet, cell(1, row), sanitizeCell(line))
			row++
		}
		row++
	}
	return nil
}

// sanitizeCell prefixes text that a spreadsheet would read as a formula.
func sanitizeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}
