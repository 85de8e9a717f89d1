// Package recorder stores filtered frames in a length-prefixed msgpack file
// and replays such files as a capture source.
//
// File layout:
//
//	[4-byte big-endian length][msgpack Header]
//	[4-byte big-endian length][msgpack Frame] ...
package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Magic identifies a recording header
	Magic = "edgeview-rec"
	// Version of the record layout
	Version = 1
	// maxRecordSize guards against corrupt length prefixes
	maxRecordSize = 16 << 20
)

// ErrBadHeader is returned when a file does not start with a recording header.
var ErrBadHeader = errors.New("recorder: not an edgeview recording")

// Header is the first record of every recording.
type Header struct {
	Magic     string    `msgpack:"magic"`
	Version   int       `msgpack:"version"`
	SessionID string    `msgpack:"session_id"`
	Format    string    `msgpack:"format"`
	Width     int       `msgpack:"width"`
	Height    int       `msgpack:"height"`
	Mode      string    `msgpack:"mode"`
	Created   time.Time `msgpack:"created"`
}

// Frame is one delivered buffer.
type Frame struct {
	Seq       uint64    `msgpack:"seq"`
	Timestamp time.Time `msgpack:"timestamp"`
	TraceID   string    `msgpack:"trace_id"`
	Data      []byte    `msgpack:"data"`
}

// writeRecord writes v with length-prefix framing (4 bytes big-endian + msgpack data).
func writeRecord(w io.Writer, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	var lengthPrefix [4]byte
	binary.BigEndian.PutUint32(lengthPrefix[:], uint32(len(data)))
	if _, err := w.Write(lengthPrefix[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// readRecord reads one framed record into v. It returns io.EOF only when the
// stream ends cleanly on a record boundary.
func readRecord(r io.Reader, v any) error {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > maxRecordSize {
		return fmt.Errorf("record length %d exceeds limit %d", length, maxRecordSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read record: %w", io.ErrUnexpectedEOF)
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}
