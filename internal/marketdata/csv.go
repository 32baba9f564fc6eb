package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"stockdash/internal/model"
)

// csvColumns is the expected column order when a file has no header.
var csvColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ReadCSV reads daily bars from rows of date,open,high,low,close,volume.
// A header row, if present, may list the columns in any order; extra
// columns are ignored. Dates are YYYY-MM-DD or RFC 3339. Row order is
// preserved so the indicator engine can reject unsorted input.
func ReadCSV(r io.Reader, ticker string) (model.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := model.Series{Ticker: ticker, Interval: DefaultInterval}
	idx := defaultIndex()
	line := 0

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Series{}, fmt.Errorf("csv: %w", err)
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if line == 1 && isHeader(row) {
			if idx, err = headerIndex(row); err != nil {
				return model.Series{}, err
			}
			continue
		}

		b, err := parseRow(row, idx)
		if err != nil {
			return model.Series{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		s.Bars = append(s.Bars, b)
	}
	return s, nil
}

func defaultIndex() map[string]int {
	idx := make(map[string]int, len(csvColumns))
	for i, c := range csvColumns {
		idx[c] = i
	}
	return idx
}

func isHeader(row []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(row[len(row)-1]), 64)
	return err != nil
}

func headerIndex(row []string) (map[string]int, error) {
	idx := make(map[string]int, len(row))
	for i, name := range row {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("csv header: missing column %q", c)
		}
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int) (model.Bar, error) {
	field := func(name string) (string, error) {
		i := idx[name]
		if i >= len(row) {
			return "", fmt.Errorf("missing %s", name)
		}
		return strings.TrimSpace(row[i]), nil
	}

	var b model.Bar
	raw, err := field("date")
	if err != nil {
		return b, err
	}
	if b.TS, err = parseDate(raw); err != nil {
		return b, err
	}

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"volume", &b.Volume},
	} {
		raw, err := field(f.name)
		if err != nil {
			return b, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, fmt.Errorf("%s %q: %w", f.name, raw, err)
		}
		*f.dst = v
	}
	return b, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}
