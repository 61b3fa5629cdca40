package ingest

import (
	"bufio"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/stipend/core"
)

// RowSource yields the header first, then the data rows, then io.EOF.
type RowSource interface {
	Read() ([]string, error)
}

// NewCSVSource reads comma separated rows. A leading UTF-8 BOM is dropped.
func NewCSVSource(r io.Reader) RowSource {
	br := stripUTF8BOM(bufio.NewReader(r))
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

type sliceSource struct {
	rows [][]string
	pos  int
}

func (s *sliceSource) Read() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// NewXLSXSource reads the rows of the first sheet of a workbook.
func NewXLSXSource(r io.Reader) (RowSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewValidationError(errors.Wrap(err, "reading workbook"))
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrap(err, "reading worksheet")
	}
	return &sliceSource{rows: rows}, nil
}

// SourceFor picks the reader matching the extension of an uploaded file.
func SourceFor(filename string, r io.Reader) (RowSource, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return NewCSVSource(r), nil
	case ".xlsx":
		return NewXLSXSource(r)
	}
	return nil, core.NewValidationError(errors.New("CSV file required."))
}

// record is a data row addressed by header name.
type record struct {
	num    int // 1 is the header row
	cells  []string
	header map[string]int
}

func (rec record) get(name string) string {
	idx, ok := rec.header[name]
	if !ok || idx >= len(rec.cells) {
		return ""
	}
	return strings.TrimSpace(rec.cells[idx])
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// readAll splits a source into its header and its non blank records.
func readAll(src RowSource) ([]string, []record, error) {
	var header []string
	for {
		row, err := src.Read()
		if err == io.EOF {
			return nil, nil, core.NewValidationError(errors.New("File is empty or missing."))
		}
		if err != nil {
			return nil, nil, core.NewValidationError(errors.Wrap(err, "reading header"))
		}
		if !isBlank(row) {
			header = row
			break
		}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		header[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var records []record
	num := 1
	for {
		row, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, core.NewRowError(num+1, err, "Malformed row %d", num+1)
		}
		if isBlank(row) {
			continue
		}
		num++
		records = append(records, record{num: num, cells: row, header: index})
	}
	return header, records, nil
}
