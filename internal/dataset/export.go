package dataset

import (
	"fmt"
	"io"

	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Counties"

// WriteXLSX writes the join table as a workbook whose header matches the
// loader's input columns, plus a resolved label column per factor slot. Parse
// reads the result back into an equivalent table.
func WriteXLSX(w io.Writer, t *Table, labels *domain.LabelTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"key", "State", "County"}
	for i := range domain.SlotCount {
		header = append(header, factorColumn(i), contributionColumn(i), fmt.Sprintf("label_%d", i+1))
	}
	header = append(header, colPredicted, colActual)
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range t.Records() {
		row := []any{string(r.Key), r.State, r.County}
		for _, fc := range r.Factors {
			row = append(row, fc.Code, fc.Value, labels.Resolve(fc.Code))
		}
		row = append(row, r.Predicted, r.Actual)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
