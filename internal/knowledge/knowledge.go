// Package knowledge loads the spreadsheet tables that ground every answer.
package knowledge

import (
	"errors"
	"fmt"
)

// Table names. They are fixed identifiers, not configuration.
const (
	TableEHousekeeper = "E-housekeeper"
	TableSmartSocket  = "smart-socket"
	TableInstallation = "pre/mid/post-installation issues"
)

// Source binds a table name to the workbook sheets it may be read from, in
// preference order. Excel forbids "/" in sheet names and caps them at 31
// characters, so the installation table is stored as "installation issues".
// The legacy workbook names are also accepted.
type Source struct {
	Table  string
	Sheets []string
}

// RequiredSources lists the tables in the order they are loaded and formatted.
var RequiredSources = []Source{
	{Table: TableEHousekeeper, Sheets: []string{"E-housekeeper", "E管家"}},
	{Table: TableSmartSocket, Sheets: []string{"smart-socket", "智慧插座"}},
	{Table: TableInstallation, Sheets: []string{"installation issues", "安裝前中後問題"}},
}

// Table is one sheet: a header row plus data rows of cell strings.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Base is the loaded knowledge. It is never modified after loading.
type Base struct {
	Source string
	Tables []Table
}

// Table returns the named table.
func (b *Base) Table(name string) (Table, bool) {
	for _, t := range b.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// RowCount is the total number of data rows across all tables.
func (b *Base) RowCount() int {
	n := 0
	for _, t := range b.Tables {
		n += len(t.Rows)
	}
	return n
}

// ErrMissingSheet is wrapped by LoadError when a required sheet is absent.
var ErrMissingSheet = errors.New("required sheet missing")

// ErrEmptySheet is wrapped by LoadError when a sheet has no header row.
var ErrEmptySheet = errors.New("sheet has no header row")

// LoadError reports why the knowledge source could not be loaded.
type LoadError struct {
	Path  string
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("load knowledge %s table %q: %v", e.Path, e.Table, e.Err)
	}
	return fmt.Sprintf("load knowledge %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
