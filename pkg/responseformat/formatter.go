// Package responseformat encodes detection records as JSON lines or
// MessagePack, optionally wrapped in a compression frame.
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

// Output formats
const (
	FormatJSON    = "json"
	FormatMsgPack = "msgpack"
)

// Compression frames
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
	CompressionS2   = "s2"
)

// Writer encodes a stream of records to an underlying writer
type Writer struct {
	encode func(any) error
	frame  io.WriteCloser
}

// NewWriter creates a record writer. JSON is written one record per line;
// MessagePack records are concatenated. Close must be called to flush the
// compression frame. The underlying writer is never closed.
func NewWriter(w io.Writer, format, compression string) (*Writer, error) {
	frame, err := newFrameWriter(w, compression)
	if err != nil {
		return nil, err
	}

	fw := &Writer{frame: frame}
	switch format {
	case FormatJSON, "":
		fw.encode = writeJSON(frame)
	case FormatMsgPack:
		fw.encode = writeMsgPack(frame)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return fw, nil
}

// Write encodes one record
func (w *Writer) Write(data any) error {
	return w.encode(data)
}

// Close flushes and closes the compression frame
func (w *Writer) Close() error {
	return w.frame.Close()
}

func writeJSON(w io.Writer) func(any) error {
	return json.NewEncoder(w).Encode
}

func writeMsgPack(w io.Writer) func(any) error {
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func newFrameWriter(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone, "":
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionS2:
		return s2.NewWriter(w), nil
	}
	return nil, fmt.Errorf("unsupported compression %q", compression)
}
