package source

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

// seed file column headers recognized by the loader, lowercased.
var seedColumns = map[string]bool{
	"name": true, "street": true, "city": true, "province": true,
	"postal_code": true, "phone": true, "website": true, "email": true,
	"industry": true,
}

// LoadSeedAdapter reads a CSV or XLSX seed file into a StaticAdapter. The
// first row must be a header naming at least the "name" column; unknown
// columns are ignored. Rows with an empty name are skipped with a warning —
// a record without a name has no identity anchor.
func LoadSeedAdapter(name string, priority int, path string) (*StaticAdapter, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readSeedCSV(path)
	case ".xlsx":
		rows, err = readSeedXLSX(path)
	default:
		return nil, eris.Errorf("source: unsupported seed file type %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("source: seed file %s is empty", path)
	}

	records, err := rowsToRecords(rows, path)
	if err != nil {
		return nil, err
	}
	return NewStaticAdapter(name, priority, records), nil
}

func readSeedCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open seed file %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow ragged rows

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "source: read seed csv %s", path)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readSeedXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open seed xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("source: seed xlsx %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = strings.TrimSpace(c.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func rowsToRecords(rows [][]string, path string) ([]model.RawRecord, error) {
	header := rows[0]
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if seedColumns[h] {
			cols[h] = i
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, eris.Errorf("source: seed file %s missing name column", path)
	}

	cell := func(row []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []model.RawRecord
	for n, row := range rows[1:] {
		name := cell(row, "name")
		if name == "" {
			zap.L().Warn("seed row missing name, skipped",
				zap.String("file", path),
				zap.Int("row", n+2),
			)
			continue
		}
		records = append(records, model.RawRecord{
			Name:       name,
			Street:     cell(row, "street"),
			City:       cell(row, "city"),
			Province:   cell(row, "province"),
			PostalCode: cell(row, "postal_code"),
			Phone:      cell(row, "phone"),
			Website:    cell(row, "website"),
			Email:      cell(row, "email"),
			Industry:   cell(row, "industry"),
		})
	}
	return records, nil
}
