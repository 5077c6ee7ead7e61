package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/centrally/ingest-cli/internal/model"
)

// XLSXOptions configures workbook reading.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSXFile reads one worksheet into a typed dataset. The first row is
// the header; cells are stringified by the workbook library and then
// type-inferred exactly like CSV cells.
func ReadXLSXFile(path string, opts XLSXOptions) (*model.Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open workbook %s", path)
	}

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("ingest: sheet %q in %s is empty", sheet.Name, path)
	}

	header := rowToStrings(sheet.Rows[0])
	ds := model.NewDataset(datasetNameFromPath(path))
	ds.AddColumns(header...)

	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		rec := make(model.Record, len(header))
		for i, col := range header {
			if i < len(cells) {
				rec[col] = InferValue(cells[i])
			} else {
				rec[col] = nil
			}
		}
		ds.Append(rec)
	}

	return ds, nil
}

func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("ingest: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
