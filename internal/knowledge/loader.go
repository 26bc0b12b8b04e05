package knowledge

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Loader reads a workbook once per path and serves the cached Base after
// that. Construct one at startup and share it.
type Loader struct {
	log     logrus.FieldLogger
	mu      sync.Mutex
	cache   map[string]*Base
	sources []Source
}

func NewLoader(log logrus.FieldLogger) *Loader {
	return &Loader{
		log:     log,
		cache:   make(map[string]*Base),
		sources: RequiredSources,
	}
}

// Load returns the knowledge base stored at path. Only the first successful
// call for a path touches the file. Failures are not cached.
func (l *Loader) Load(path string) (*Base, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.cache[path]; ok {
		return b, nil
	}

	b, err := readWorkbook(path, l.sources)
	if err != nil {
		return nil, err
	}
	l.cache[path] = b
	l.log.WithFields(logrus.Fields{
		"path":   path,
		"tables": len(b.Tables),
		"rows":   b.RowCount(),
	}).Info("knowledge base loaded")
	return b, nil
}

func readWorkbook(path string, sources []Source) (*Base, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	present := f.GetSheetList()
	b := &Base{Source: path, Tables: make([]Table, 0, len(sources))}
	for _, src := range sources {
		sheet, ok := pickSheet(present, src.Sheets)
		if !ok {
			return nil, &LoadError{
				Path:  path,
				Table: src.Table,
				Err:   fmt.Errorf("%w: want one of %q", ErrMissingSheet, src.Sheets),
			}
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &LoadError{Path: path, Table: src.Table, Err: err}
		}
		t, err := buildTable(src.Table, rows)
		if err != nil {
			return nil, &LoadError{Path: path, Table: src.Table, Err: err}
		}
		b.Tables = append(b.Tables, t)
	}
	return b, nil
}

func pickSheet(present, candidates []string) (string, bool) {
	for _, c := range candidates {
		if slices.Contains(present, c) {
			return c, true
		}
	}
	return "", false
}

// buildTable treats the first non-blank row as the header and drops blank
// rows. Every row is padded to the widest row; header cells added that way
// are named "Unnamed: <index>".
func buildTable(name string, rows [][]string) (Table, error) {
	t := Table{Name: name}
	width := 0
	for _, row := range rows {
		if blank(row) {
			continue
		}
		row = trimTrailingBlank(row)
		width = max(width, len(row))
		if t.Header == nil {
			t.Header = row
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Header) == 0 {
		return Table{}, ErrEmptySheet
	}

	for i := len(t.Header); i < width; i++ {
		t.Header = append(t.Header, fmt.Sprintf("Unnamed: %d", i))
	}
	for i, row := range t.Rows {
		t.Rows[i] = pad(row, width)
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailingBlank(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return slices.Clone(row[:end])
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
