package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const vaccineTypesColumn = "vaccine_types"

// Record is one annotated row. Columns keep their CSV order when encoded.
type Record struct {
	columns []string
	values  map[string]any
}

// Get returns the converted value of column, nil when empty or absent.
func (r Record) Get(column string) any {
	return r.values[column]
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(col)
		if err != nil {
			return nil, err
		}
		v, err := marshalNoEscape(r.values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type columnKind int

const (
	kindString columnKind = iota
	kindInt
	kindFloat
	kindBool
)

// ReadAnnotated converts the annotated CSV. Column types are inferred over the whole
// column: integers, then floats, then booleans, otherwise strings. Empty cells become null.
// vaccine_types cells are parsed as JSON; cells that are not JSON become a one-element list.
func ReadAnnotated(r io.Reader) ([]Record, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	kinds := make([]columnKind, len(header))
	for i := range header {
		kinds[i] = inferKind(rows, i)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{columns: header, values: make(map[string]any, len(header))}
		for i, col := range header {
			cell := row[i]
			if col == vaccineTypesColumn {
				rec.values[col] = parseVaccineTypes(cell)
				continue
			}
			rec.values[col] = convertCell(cell, kinds[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

func inferKind(rows [][]string, col int) columnKind {
	isInt, isFloat, isBool, seen := true, true, true, false
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			isFloat = false
		}
		if _, ok := parseBool(cell); !ok {
			isBool = false
		}
	}
	switch {
	case !seen:
		return kindString
	case isInt:
		return kindInt
	case isFloat:
		return kindFloat
	case isBool:
		return kindBool
	default:
		return kindString
	}
}

func convertCell(cell string, kind columnKind) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	switch kind {
	case kindInt:
		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return n
	case kindFloat:
		f, _ := strconv.ParseFloat(trimmed, 64)
		return f
	case kindBool:
		b, _ := parseBool(trimmed)
		return b
	default:
		return cell
	}
}

// parseBool accepts the spellings pandas reads as booleans.
func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	}
	return false, false
}

func parseVaccineTypes(cell string) any {
	if strings.TrimSpace(cell) == "" {
		return []any{}
	}
	var v any
	if err := json.Unmarshal([]byte(cell), &v); err != nil {
		return []any{cell}
	}
	return v
}

// readCSV returns the header and the data rows, all padded to the header width.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%w: missing header", ErrMalformedCSV)
	}

	header := all[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := all[1:]
	for i, row := range rows {
		if len(row) > len(header) {
			return nil, nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrMalformedCSV, i+2, len(row), len(header))
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows[i] = row
	}
	return header, rows, nil
}
