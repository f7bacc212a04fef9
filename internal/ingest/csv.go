// Package ingest parses the retail CSV exports (stores.csv, train.csv,
// features.csv) into typed records for bulk loading. Missing numeric cells
// are encoded as "NA" in the exports and map to nil pointers here.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

const dateLayout = "2006-01-02"

// ParseError reports a malformed CSV cell with its location.
type ParseError struct {
	File   string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ingest: %s line %d column %q: %v", e.File, e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadStores parses stores.csv (Store,Type,Size).
func ReadStores(path string) ([]dataset.StoreRecord, error) {
	var out []dataset.StoreRecord
	err := readCSV(path, 3, func(line int, rec []string) error {
		p := &parser{file: path, line: line}
		r := dataset.StoreRecord{
			StoreID:   p.intCell("Store", rec[0]),
			StoreType: dataset.StoreType(strings.TrimSpace(rec[1])),
			Size:      p.floatCell("Size", rec[2]),
		}
		if p.err != nil {
			return p.err
		}
		if !r.StoreType.Valid() {
			return &ParseError{File: path, Line: line, Column: "Type",
				Err: fmt.Errorf("unknown store type %q", rec[1])}
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// ReadSales parses train.csv (Store,Dept,Date,Weekly_Sales,IsHoliday).
func ReadSales(path string) ([]dataset.SalesRecord, error) {
	var out []dataset.SalesRecord
	err := readCSV(path, 5, func(line int, rec []string) error {
		p := &parser{file: path, line: line}
		r := dataset.SalesRecord{
			StoreID:     p.intCell("Store", rec[0]),
			DeptID:      p.intCell("Dept", rec[1]),
			Date:        p.dateCell("Date", rec[2]),
			WeeklySales: p.floatCell("Weekly_Sales", rec[3]),
			IsHoliday:   p.boolCell("IsHoliday", rec[4]),
		}
		if p.err != nil {
			return p.err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// ReadIndicators parses features.csv (Store,Date,Temperature,Fuel_Price,
// MarkDown1..5,CPI,Unemployment,IsHoliday).
func ReadIndicators(path string) ([]dataset.IndicatorRecord, error) {
	var out []dataset.IndicatorRecord
	err := readCSV(path, 12, func(line int, rec []string) error {
		p := &parser{file: path, line: line}
		r := dataset.IndicatorRecord{
			StoreID:      p.intCell("Store", rec[0]),
			Date:         p.dateCell("Date", rec[1]),
			Temperature:  p.nullFloatCell("Temperature", rec[2]),
			FuelPrice:    p.nullFloatCell("Fuel_Price", rec[3]),
			CPI:          p.nullFloatCell("CPI", rec[9]),
			Unemployment: p.nullFloatCell("Unemployment", rec[10]),
			IsHoliday:    p.boolCell("IsHoliday", rec[11]),
		}
		for i := 0; i < 5; i++ {
			r.Markdown[i] = p.nullFloatCell(fmt.Sprintf("MarkDown%d", i+1), rec[4+i])
		}
		if p.err != nil {
			return p.err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func readCSV(path string, wantFields int, row func(line int, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = wantFields
	r.ReuseRecord = true

	// Header row.
	if _, err := r.Read(); err != nil {
		return fmt.Errorf("ingest: %s: read header: %w", path, err)
	}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ingest: %s line %d: %w", path, line, err)
		}
		if err := row(line, rec); err != nil {
			return err
		}
	}
}

// parser accumulates the first cell-level error so each row reads as a
// single struct literal at the call site.
type parser struct {
	file string
	line int
	err  error
}

func (p *parser) fail(column string, err error) {
	if p.err == nil {
		p.err = &ParseError{File: p.file, Line: p.line, Column: column, Err: err}
	}
}

func (p *parser) intCell(column, raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(column, err)
	}
	return v
}

func (p *parser) floatCell(column, raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.fail(column, err)
	}
	return v
}

func (p *parser) nullFloatCell(column, raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "NA" {
		return nil
	}
	v := p.floatCell(column, raw)
	if p.err != nil {
		return nil
	}
	return &v
}

func (p *parser) dateCell(column, raw string) time.Time {
	v, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		p.fail(column, err)
	}
	return v
}

func (p *parser) boolCell(column, raw string) bool {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TRUE", "T", "1":
		return true
	case "FALSE", "F", "0":
		return false
	}
	p.fail(column, fmt.Errorf("invalid boolean %q", raw))
	return false
}
