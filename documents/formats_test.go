package documents

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readBack(t *testing.T, buf *bytes.Buffer) []Record {
	t.Helper()
	br, err := NewBatchReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	var out []Record
	for br.Next() {
		rec := make(Record, len(br.Record()))
		copy(rec, br.Record())
		out = append(out, rec)
	}
	require.NoError(t, br.Err())
	return out
}

func TestReadCSV(t *testing.T) {
	input := "name,price,active\nchair,12.5,true\ntable,,false\n"

	var buf bytes.Buffer
	b, err := NewBatchBuilder(&buf)
	require.NoError(t, err)

	n, err := ReadCSV(strings.NewReader(input), b)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, b.Close())

	require.Equal(t, []string{"name", "price", "active"}, b.Fields().Names())

	recs := readBack(t, &buf)
	require.Len(t, recs, 2)

	v, ok := recs[0].Get(1)
	require.True(t, ok)
	require.Equal(t, Number(12.5), v)

	// CSV has no booleans; cells that are not numbers stay strings.
	v, ok = recs[0].Get(2)
	require.True(t, ok)
	require.Equal(t, String("true"), v)

	// The empty price cell is absent from the second record.
	_, ok = recs[1].Get(1)
	require.False(t, ok)
}

func TestReadCSVMalformed(t *testing.T) {
	var buf bytes.Buffer
	b, err := NewBatchBuilder(&buf)
	require.NoError(t, err)

	_, err = ReadCSV(strings.NewReader("a,b\n\"unterminated\n"), b)
	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)
	require.True(t, ferr.Malformed())
	require.Equal(t, PayloadCSV, ferr.Payload)
}

func TestReadCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	b, err := NewBatchBuilder(&buf)
	require.NoError(t, err)

	n, err := ReadCSV(strings.NewReader(""), b)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReadNDJSON(t *testing.T) {
	input := `{"name":"chair","price":12.5,"active":true}

{"name":"table","price":7,"note":null}
`
	var buf bytes.Buffer
	b, err := NewBatchBuilder(&buf)
	require.NoError(t, err)

	n, err := ReadNDJSON(strings.NewReader(input), b)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, b.Close())

	recs := readBack(t, &buf)
	require.Len(t, recs, 2)

	v, ok := recs[0].Get(b.Fields().ID("active"))
	require.True(t, ok)
	require.Equal(t, Bool(true), v)

	v, ok = recs[1].Get(b.Fields().ID("note"))
	require.True(t, ok)
	require.Equal(t, KindNull, v.Kind)
}

func TestReadNDJSONMalformed(t *testing.T) {
	var buf bytes.Buffer
	b, err := NewBatchBuilder(&buf)
	require.NoError(t, err)

	n, err := ReadNDJSON(strings.NewReader("{\"ok\":1}\nnot json\n"), b)
	require.Equal(t, 1, n)
	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)
	require.True(t, ferr.Malformed())
	require.Equal(t, PayloadNDJSON, ferr.Payload)
}

func TestReadJSONArray(t *testing.T) {
	var buf bytes.Buffer
	b, err := NewBatchBuilder(&buf)
	require.NoError(t, err)

	n, err := ReadJSON(strings.NewReader(`[{"a":1},{"a":2},{"a":3}]`), b)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestReadJSONSingleObject(t *testing.T) {
	var buf bytes.Buffer
	b, err := NewBatchBuilder(&buf)
	require.NoError(t, err)

	n, err := ReadJSON(strings.NewReader(`{"a":1}`), b)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestReadJSONNestedValue(t *testing.T) {
	var buf bytes.Buffer
	b, err := NewBatchBuilder(&buf)
	require.NoError(t, err)

	_, err = ReadJSON(strings.NewReader(`[{"a":{"nested":1}}]`), b)
	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)
	require.True(t, ferr.Malformed())
}

func TestFormatErrorMessages(t *testing.T) {
	long := strings.Repeat("x", 300)
	err := malformedErr(PayloadJSON, errors.New(long))

	msg := err.Error()
	require.Contains(t, msg, "the json payload provided is malformed")
	require.Contains(t, msg, "...")
	require.Less(t, len(msg), 200)

	internal := internalErr(PayloadCSV, errors.New("disk full"))
	require.False(t, internal.Malformed())
	require.Contains(t, internal.Error(), "internal error while reading csv payload")
}
