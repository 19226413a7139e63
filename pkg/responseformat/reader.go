package responseformat

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Reader decodes a stream written by Writer
type Reader struct {
	decode func(any) error
	close  func()
}

// NewReader creates a record reader for the given format and compression.
// Decode returns io.EOF once the stream is exhausted.
func NewReader(r io.Reader, format, compression string) (*Reader, error) {
	rd := &Reader{close: func() {}}

	var src io.Reader
	switch compression {
	case CompressionNone, "":
		src = r
	case CompressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		src = dec
		rd.close = dec.Close
	case CompressionLZ4:
		src = lz4.NewReader(r)
	case CompressionS2:
		src = s2.NewReader(r)
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}

	switch format {
	case FormatJSON, "":
		rd.decode = json.NewDecoder(src).Decode
	case FormatMsgPack:
		decoder := msgpack.NewDecoder(src)
		decoder.SetCustomStructTag("json")
		rd.decode = decoder.Decode
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return rd, nil
}

// Decode reads the next record into v
func (r *Reader) Decode(v any) error {
	return r.decode(v)
}

// Close releases decoder resources
func (r *Reader) Close() {
	r.close()
}
