package responseformat

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	PixelID  string    `json:"pixel_id"`
	BreakDay *int      `json:"break_day"`
	Values   []float64 `json:"values"`
}

func records() []record {
	day := 736330
	return []record{
		{PixelID: "a", BreakDay: &day, Values: []float64{1.5, -2}},
		{PixelID: "b", Values: []float64{}},
		{PixelID: "c", Values: []float64{0.25}},
	}
}

func writeAll(t *testing.T, format, compression string, recs []record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, format, compression)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestJSONLines(t *testing.T) {
	out := writeAll(t, FormatJSON, CompressionNone, records())
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `{"pixel_id":"a","break_day":736330,"values":[1.5,-2]}`, lines[0])
	assert.Equal(t, `{"pixel_id":"b","break_day":null,"values":[]}`, lines[1])
}

func TestMsgPackUsesJSONTags(t *testing.T) {
	out := writeAll(t, FormatMsgPack, CompressionNone, records()[:1])

	r, err := NewReader(bytes.NewReader(out), FormatMsgPack, CompressionNone)
	require.NoError(t, err)
	defer r.Close()

	var m map[string]any
	require.NoError(t, r.Decode(&m))
	assert.Contains(t, m, "pixel_id")
	assert.Contains(t, m, "break_day")
	assert.NotContains(t, m, "PixelID")
}

func TestCompressedRoundTrip(t *testing.T) {
	tests := []struct {
		format      string
		compression string
	}{
		{FormatMsgPack, CompressionZstd},
		{FormatJSON, CompressionLZ4},
		{FormatJSON, CompressionS2},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.compression, func(t *testing.T) {
			out := writeAll(t, tt.format, tt.compression, records())

			r, err := NewReader(bytes.NewReader(out), tt.format, tt.compression)
			require.NoError(t, err)
			defer r.Close()

			var got []record
			for {
				var rec record
				err := r.Decode(&rec)
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, rec)
			}
			if diff := cmp.Diff(records(), got); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnsupported(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, "xml", CompressionNone)
	assert.Error(t, err)
	_, err = NewWriter(&buf, FormatJSON, "bzip2")
	assert.Error(t, err)
	_, err = NewReader(&buf, FormatJSON, "bzip2")
	assert.Error(t, err)
	_, err = NewReader(&buf, "xml", CompressionNone)
	assert.Error(t, err)
}
