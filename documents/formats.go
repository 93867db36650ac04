package documents

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
)

// ReadCSV parses delimited text with a header row into b and returns
// the number of records appended. Cells that parse as numbers become
// numeric facet values; everything else stays a string. Empty cells are
// skipped.
func ReadCSV(r io.Reader, b *BatchBuilder) (int, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, classifyCSV(err)
	}
	fieldIDs := make([]uint16, len(header))
	for i, name := range header {
		fieldIDs[i] = b.Fields().ID(strings.TrimSpace(name))
	}

	count := 0
	fields := make([]FieldValue, 0, len(header))
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, classifyCSV(err)
		}
		if len(row) != len(header) {
			return count, malformedErr(PayloadCSV,
				fmt.Errorf("record has %d fields, header has %d", len(row), len(header)))
		}

		fields = fields[:0]
		for i, cell := range row {
			if cell == "" {
				continue
			}
			fields = append(fields, FieldValue{ID: fieldIDs[i], Value: parseCell(cell)})
		}
		if _, err := b.Append(fields); err != nil {
			return count, internalErr(PayloadCSV, err)
		}
		count++
	}
	return count, nil
}

func classifyCSV(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return malformedErr(PayloadCSV, err)
	}
	return internalErr(PayloadCSV, err)
}

func parseCell(cell string) Value {
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return Number(f)
	}
	return String(cell)
}

// ReadNDJSON parses one JSON object per line into b and returns the
// number of records appended. Blank lines are skipped.
func ReadNDJSON(r io.Reader, b *BatchBuilder) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)

	count := 0
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var obj map[string]any
		if err := gojson.Unmarshal(line, &obj); err != nil {
			return count, malformedErr(PayloadNDJSON, err)
		}
		if err := appendObject(b, obj, PayloadNDJSON); err != nil {
			return count, err
		}
		count++
	}
	if err := sc.Err(); err != nil {
		return count, internalErr(PayloadNDJSON, err)
	}
	return count, nil
}

// ReadJSON parses a whole-document JSON payload into b and returns the
// number of records appended. The payload is either an array of flat
// objects or a single flat object.
func ReadJSON(r io.Reader, b *BatchBuilder) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, internalErr(PayloadJSON, err)
	}

	var objs []map[string]any
	if err := gojson.Unmarshal(raw, &objs); err != nil {
		var single map[string]any
		if serr := gojson.Unmarshal(raw, &single); serr != nil {
			return 0, malformedErr(PayloadJSON, err)
		}
		objs = []map[string]any{single}
	}

	for i, obj := range objs {
		if err := appendObject(b, obj, PayloadJSON); err != nil {
			return i, err
		}
	}
	return len(objs), nil
}

// appendObject converts one flat JSON object into a record. Field ids
// are assigned over sorted key order so the mapping does not depend on
// map iteration order.
func appendObject(b *BatchBuilder, obj map[string]any, payload PayloadType) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]FieldValue, 0, len(obj))
	for _, k := range keys {
		v, err := jsonValue(obj[k])
		if err != nil {
			return malformedErr(payload, fmt.Errorf("field %q: %w", k, err))
		}
		fields = append(fields, FieldValue{ID: b.Fields().ID(k), Value: v})
	}
	if _, err := b.Append(fields); err != nil {
		return internalErr(payload, err)
	}
	return nil
}

func jsonValue(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported nested value of type %T", v)
	}
}
