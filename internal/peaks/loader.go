package peaks

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// commentMarker starts the header line and truncates trailing annotations in
// data rows of an exported peak list.
const commentMarker = "#"

// ErrNoHeader reports a peak list whose first line is not a comment-marked
// column header.
var ErrNoHeader = errors.New("peak list: first line is not a comment-marked header")

// RowError reports a data row that could not be parsed. Any RowError aborts
// the whole load; no partial peak list is ever returned.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("peak list: line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// FromOptions assembles one Spec from explicit parameters. position and fwhm
// are mandatory; NaN marks an unset flag.
func FromOptions(position, fwhm float64, shape string, fitWidth float64) (Spec, error) {
	if math.IsNaN(position) {
		return Spec{}, errors.New("peak position not set")
	}
	if math.IsNaN(fwhm) {
		return Spec{}, errors.New("peak fwhm not set")
	}
	sh, err := ParseShape(shape)
	if err != nil {
		return Spec{}, err
	}
	spec := Spec{Position: position, FWHM: fwhm, Shape: sh, FitWidth: fitWidth}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// LoadFile reads an exported peak list. The first line must start with the
// comment marker followed by whitespace-delimited, case-insensitive column
// names; every following line is a data row aligned to those columns, with an
// optional trailing comment. Rows that carry no position or fwhm value are
// dropped; a row whose value fails to parse aborts the load.
func LoadFile(path string) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("peak list: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("peak list: %w", err)
		}
		return nil, ErrNoHeader
	}
	header := strings.TrimSpace(sc.Text())
	if !strings.HasPrefix(header, commentMarker) {
		return nil, ErrNoHeader
	}
	columns := strings.Fields(strings.TrimPrefix(header, commentMarker))
	for i, c := range columns {
		columns[i] = strings.ToLower(c)
	}

	var specs []Spec
	line := 1
	for sc.Scan() {
		line++
		row := sc.Text()
		if i := strings.Index(row, commentMarker); i >= 0 {
			row = row[:i]
		}
		fields := strings.Fields(row)
		if len(fields) == 0 {
			continue
		}
		spec, ok, err := parseRow(columns, fields)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		if !ok {
			continue
		}
		specs = append(specs, spec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("peak list: %w", err)
	}
	if line < 2 {
		return nil, &RowError{Line: line, Err: errors.New("no data rows")}
	}
	return specs, nil
}

// parseRow builds a Spec from one data row. ok is false when the row carries
// no position or fwhm value; such rows are dropped by the caller.
func parseRow(columns, fields []string) (spec Spec, ok bool, err error) {
	spec = Spec{Position: math.NaN(), FWHM: math.NaN()}
	for i, col := range columns {
		if i >= len(fields) {
			break
		}
		val := fields[i]
		switch col {
		case "position":
			spec.Position, err = parseDecimal(val)
		case "fwhm":
			spec.FWHM, err = parseDecimal(val)
		case "fit_width", "fitwidth":
			spec.FitWidth, err = parseDecimal(val)
		case "shape":
			spec.Shape, err = ParseShape(val)
		}
		if err != nil {
			return Spec{}, false, fmt.Errorf("column %s: %w", col, err)
		}
	}
	if math.IsNaN(spec.Position) || math.IsNaN(spec.FWHM) {
		return Spec{}, false, nil
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, false, err
	}
	return spec, true, nil
}

// parseDecimal parses a float accepting both point and comma decimal
// separators, so lists exported under a comma-decimal locale load unchanged.
func parseDecimal(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return v, nil
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	}
	return 0, fmt.Errorf("invalid number %q", s)
}
