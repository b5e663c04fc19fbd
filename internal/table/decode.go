package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidJSON is returned when the payload is not a single JSON value
	ErrInvalidJSON = errors.New("invalid JSON payload")

	// ErrUnsupportedShape is returned for JSON that does not describe a table
	ErrUnsupportedShape = errors.New("unsupported JSON shape")
)

// FromJSON builds a table from a JSON document in one of three shapes:
//
//	{"id": ["1", "2"], "name": ["a", "b"]}            column-oriented
//	{"id": {"0": "1", "1": "2"}, "name": {...}}        index-oriented
//	[{"id": "1", "name": "a"}, {"id": "2"}]            record-oriented
//
// Columns keep the order in which their keys first appear. Every cell is
// converted with Text; cells missing from a record or index become "nan".
func FromJSON(data []byte) (*Table, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}

	trimmed := bytes.TrimSpace(data)
	switch trimmed[0] {
	case '{':
		return fromColumns(trimmed)
	case '[':
		return fromRecords(trimmed)
	default:
		return nil, fmt.Errorf("%w: top-level %s", ErrUnsupportedShape, kind(trimmed))
	}
}

func fromColumns(data []byte) (*Table, error) {
	names, values, err := orderedObject(data)
	if err != nil {
		return nil, err
	}
	t := New(names...)
	if len(names) == 0 {
		return t, nil
	}

	switch first := bytes.TrimSpace(values[names[0]]); first[0] {
	case '[':
		return fillFromArrays(t, names, values)
	case '{':
		return fillFromIndexes(t, names, values)
	default:
		return nil, fmt.Errorf("%w: column %q holds a %s, want an array or object", ErrUnsupportedShape, names[0], kind(first))
	}
}

func fillFromArrays(t *Table, names []string, values map[string]json.RawMessage) (*Table, error) {
	columns := make([][]json.RawMessage, len(names))
	for i, name := range names {
		raw := bytes.TrimSpace(values[name])
		if raw[0] != '[' {
			return nil, fmt.Errorf("%w: column %q holds a %s, want an array", ErrUnsupportedShape, name, kind(raw))
		}
		if err := json.Unmarshal(raw, &columns[i]); err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		if len(columns[i]) != len(columns[0]) {
			return nil, fmt.Errorf("%w: column %q has %d values, column %q has %d",
				ErrUnsupportedShape, name, len(columns[i]), names[0], len(columns[0]))
		}
	}

	for r := 0; r < len(columns[0]); r++ {
		row := make([]string, len(names))
		for c := range names {
			s, err := Text(columns[c][r])
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", names[c], r, err)
			}
			row[c] = s
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func fillFromIndexes(t *Table, names []string, values map[string]json.RawMessage) (*Table, error) {
	var order []string
	rowOf := make(map[string]int)
	cells := make([]map[string]json.RawMessage, len(names))

	for i, name := range names {
		raw := bytes.TrimSpace(values[name])
		if raw[0] != '{' {
			return nil, fmt.Errorf("%w: column %q holds a %s, want an object", ErrUnsupportedShape, name, kind(raw))
		}
		keys, byKey, err := orderedObject(raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		for _, k := range keys {
			if _, ok := rowOf[k]; !ok {
				rowOf[k] = len(order)
				order = append(order, k)
			}
		}
		cells[i] = byKey
	}

	for _, k := range order {
		row := make([]string, len(names))
		for c, name := range names {
			s, err := Text(cells[c][k])
			if err != nil {
				return nil, fmt.Errorf("column %q index %q: %w", name, k, err)
			}
			row[c] = s
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func fromRecords(data []byte) (*Table, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	t := New()
	parsed := make([]map[string]json.RawMessage, len(records))
	for i, rec := range records {
		raw := bytes.TrimSpace(rec)
		if raw[0] != '{' {
			return nil, fmt.Errorf("%w: record %d is a %s, want an object", ErrUnsupportedShape, i, kind(raw))
		}
		keys, byKey, err := orderedObject(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		for _, k := range keys {
			t.addColumn(k)
		}
		parsed[i] = byKey
	}

	for i, byKey := range parsed {
		row := make([]string, len(t.columns))
		for c, name := range t.columns {
			s, err := Text(byKey[name])
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i, name, err)
			}
			row[c] = s
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// orderedObject decodes a JSON object keeping its key order
func orderedObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("%w: want an object", ErrUnsupportedShape)
	}

	var keys []string
	values := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", key, err)
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

// Text renders one JSON value as a cell in the same text form the table
// has always held: strings are unquoted, numbers keep their literal text,
// booleans are True/False, null is None, a missing value is nan, and arrays
// and objects use Python literal syntax (['a', 'b'], {'k': 1}).
func Text(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return MissingText, nil
	}
	switch raw[0] {
	case 'n':
		return NullText, nil
	case 't':
		return "True", nil
	case 'f':
		return "False", nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '[', '{':
		return literal(raw)
	default:
		return string(raw), nil
	}
}

func kind(raw []byte) string {
	if len(raw) == 0 {
		return "empty value"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	default:
		return "number"
	}
}
