package parser

import (
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/geopoi/importer/internal/encoding"
)

// csvColumns maps source column headers to canonical field names.
var csvColumns = map[string]string{
	"poi_id":        "id",
	"poi_name":      "name",
	"poi_category":  "category",
	"poi_latitude":  "latitude",
	"poi_longitude": "longitude",
	"poi_ratings":   "ratings",
}

// CSVParser streams a CSV file row by row. Column positions are resolved
// from the header row; blank header cells are ignored.
type CSVParser struct {
	base

	det    *encoding.Detector
	file   *os.File
	reader *stdcsv.Reader

	// header maps column position to column name.
	header []string
	row    int
	done   bool
}

// NewCSV opens path for row-by-row streaming. The file's encoding is
// detected from a leading sample before the CSV reader is attached.
func NewCSV(path string, opts Options) (*CSVParser, error) {
	det := &encoding.Detector{MinConfidence: opts.MinEncodingConfidence}
	if _, _, err := det.Detect(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	r := stdcsv.NewReader(det.Reader(f))
	r.FieldsPerRecord = -1 // rows validated per record, not rejected wholesale

	return &CSVParser{
		base:   newBase(path, opts.BatchSize, "csv"),
		det:    det,
		file:   f,
		reader: r,
		row:    1,
	}, nil
}

// Next reads rows until a full batch of valid records is assembled or the
// file ends. The trailing partial batch is returned once input is
// exhausted.
func (p *CSVParser) Next() ([]Record, error) {
	if p.done {
		return nil, io.EOF
	}

	if p.header == nil {
		if err := p.readHeader(); err != nil {
			p.done = true
			return nil, err
		}
	}

	batch := make([]Record, 0, p.batchSize)

	for {
		row, err := p.reader.Read()
		if err == io.EOF {
			p.done = true
			p.log.Info("csv parsing complete", "processed", p.processed)
			if len(batch) > 0 {
				return batch, nil
			}
			return nil, io.EOF
		}
		p.row++
		where := fmt.Sprintf("row %d", p.row)

		if err != nil {
			p.recordError(where, err.Error(), nil)
			continue
		}

		rec, ok := p.accept(p.extract(row), where)
		if !ok {
			continue
		}

		batch = append(batch, rec)
		if len(batch) >= p.batchSize {
			return batch, nil
		}
	}
}

// readHeader consumes the first row and records column names, skipping
// blank headers.
func (p *CSVParser) readHeader() error {
	row, err := p.reader.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}

	p.header = make([]string, len(row))
	for i, name := range row {
		p.header[i] = strings.TrimSpace(name)
	}
	return nil
}

// extract builds a raw record from one row using the header mapping.
// Missing columns are left absent so required-field validation fires.
func (p *CSVParser) extract(row []string) map[string]any {
	raw := make(map[string]any, len(csvColumns))
	for i, name := range p.header {
		if name == "" || i >= len(row) {
			continue
		}
		canonical, ok := csvColumns[name]
		if !ok {
			continue
		}
		raw[canonical] = row[i]
	}
	return raw
}

// Close releases the underlying file.
func (p *CSVParser) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
