package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
)

const utf8BOM = "\uFEFF"

type yearColumn struct {
	name  string
	index int
}

// csvSource is a header-addressed CSV stream shared by the file adapters.
type csvSource struct {
	r      *csv.Reader
	header map[string]int
	years  []yearColumn
}

func newCSVSource(in io.Reader) (*csvSource, error) {
	br := bufio.NewReaderSize(in, 64*1024)

	r := csv.NewReader(br)
	r.Comma = sniffDelimiter(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty extract: %w", apperrors.ErrNoData)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	s := &csvSource{r: r, header: make(map[string]int, len(header))}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)
		if _, dup := s.header[name]; !dup {
			s.header[name] = i
		}
		if len(name) == 4 {
			if _, err := strconv.Atoi(name); err == nil {
				s.years = append(s.years, yearColumn{name: name, index: i})
			}
		}
	}
	return s, nil
}

// sniffDelimiter picks the most frequent of comma, tab and semicolon in the
// header line; comma wins ties. WEO extracts are published tab-separated
// under a .xls name, and European OECD exports use semicolons.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	best, most := ',', bytes.Count(peek, []byte{','})
	for _, d := range []rune{'\t', ';'} {
		if n := bytes.Count(peek, []byte{byte(d)}); n > most {
			best, most = d, n
		}
	}
	return best
}

// require fails when any of the named columns is missing.
func (s *csvSource) require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if _, ok := s.header[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", apperrors.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// next returns the next record and its line. Decoding failures come back
// as *RowError so the caller can keep reading.
func (s *csvSource) next() ([]string, int, error) {
	rec, err := s.r.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, pe.StartLine, &RowError{Line: pe.StartLine, Err: fmt.Errorf("%w: %v", ErrMalformedRow, pe.Err)}
		}
		return nil, 0, err
	}
	line, _ := s.r.FieldPos(0)
	return rec, line, nil
}

// field returns the first present column among names, or "".
func (s *csvSource) field(rec []string, names ...string) string {
	for _, name := range names {
		if i, ok := s.header[name]; ok {
			if i < len(rec) {
				return rec[i]
			}
			return ""
		}
	}
	return ""
}

func (s *csvSource) cells(rec []string) []Cell {
	cells := make([]Cell, 0, len(s.years))
	for _, y := range s.years {
		if y.index >= len(rec) {
			break
		}
		cells = append(cells, Cell{Year: y.name, Value: rec[y.index]})
	}
	return cells
}

// WorldBankCSV reads the wide WDI data file: one row per (country, indicator)
// with a column per year.
type WorldBankCSV struct {
	src *csvSource
}

// NewWorldBankCSV reads and checks the header of a WDI data file.
func NewWorldBankCSV(r io.Reader) (*WorldBankCSV, error) {
	src, err := newCSVSource(r)
	if err != nil {
		return nil, err
	}
	if err := src.require("Country Code", "Indicator Code"); err != nil {
		return nil, err
	}
	return &WorldBankCSV{src: src}, nil
}

func (w *WorldBankCSV) Next() (Row, error) {
	rec, line, err := w.src.next()
	if err != nil {
		return Row{}, err
	}
	return Row{
		Line:          line,
		CountryCode:   w.src.field(rec, "Country Code"),
		CountryName:   w.src.field(rec, "Country Name"),
		IndicatorCode: w.src.field(rec, "Indicator Code"),
		IndicatorName: w.src.field(rec, "Indicator Name"),
		Cells:         w.src.cells(rec),
	}, nil
}

// OECDCSV reads an SDMX long-format extract: one observation per row.
type OECDCSV struct {
	src *csvSource
}

// NewOECDCSV reads and checks the header of an OECD extract.
func NewOECDCSV(r io.Reader) (*OECDCSV, error) {
	src, err := newCSVSource(r)
	if err != nil {
		return nil, err
	}
	if err := src.require("REF_AREA", "MEASURE", "TIME_PERIOD", "OBS_VALUE"); err != nil {
		return nil, err
	}
	return &OECDCSV{src: src}, nil
}

func (o *OECDCSV) Next() (Row, error) {
	rec, line, err := o.src.next()
	if err != nil {
		return Row{}, err
	}
	return Row{
		Line:          line,
		CountryCode:   o.src.field(rec, "REF_AREA"),
		IndicatorCode: o.src.field(rec, "MEASURE"),
		IndicatorName: o.src.field(rec, "Measure"),
		Dataflow:      o.src.field(rec, "DATAFLOW"),
		Cells: []Cell{{
			Year:  o.src.field(rec, "TIME_PERIOD"),
			Value: o.src.field(rec, "OBS_VALUE"),
		}},
		Long: true,
	}, nil
}

// IMFCSV reads the wide WEO extract: one row per (country, subject) with a
// column per year.
type IMFCSV struct {
	src *csvSource
}

// NewIMFCSV reads and checks the header of a WEO extract.
func NewIMFCSV(r io.Reader) (*IMFCSV, error) {
	src, err := newCSVSource(r)
	if err != nil {
		return nil, err
	}
	if err := src.require("WEO Country Code", "WEO Subject Code"); err != nil {
		return nil, err
	}
	return &IMFCSV{src: src}, nil
}

func (m *IMFCSV) Next() (Row, error) {
	rec, line, err := m.src.next()
	if err != nil {
		return Row{}, err
	}
	return Row{
		Line:          line,
		CountryCode:   m.src.field(rec, "WEO Country Code"),
		CountryName:   m.src.field(rec, "Country"),
		IndicatorCode: m.src.field(rec, "WEO Subject Code"),
		IndicatorName: m.src.field(rec, "Subject Descriptor"),
		Units:         m.src.field(rec, "Units"),
		Cells:         m.src.cells(rec),
	}, nil
}

// NewReader returns the file adapter for a source extract.
func NewReader(kind Kind, r io.Reader) (RowReader, error) {
	switch kind {
	case KindWorldBankCSV:
		return NewWorldBankCSV(r)
	case KindOECD:
		return NewOECDCSV(r)
	case KindIMF:
		return NewIMFCSV(r)
	}
	return nil, fmt.Errorf("%w: no file reader for %s", apperrors.ErrInvalidInput, kind)
}
