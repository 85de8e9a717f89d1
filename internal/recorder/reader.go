package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ReaderConfig contains configuration for replaying a recording
type ReaderConfig struct {
	// Path of the recording file
	Path string
	// Loop rewinds to the first frame at end of file instead of returning io.EOF
	Loop bool
}

// Reader replays a recording as an edgeview.CaptureSource.
type Reader struct {
	cfg    ReaderConfig
	file   *os.File
	r      *bufio.Reader
	header Header

	// dataStart is the file offset of the first frame record
	dataStart int64
	frames    uint64
	rewinds   int
}

// OpenReader opens a recording and validates its header.
func OpenReader(cfg ReaderConfig) (*Reader, error) {
	file, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("recorder: failed to open %s: %w", cfg.Path, err)
	}

	rd := &Reader{cfg: cfg, file: file, r: bufio.NewReader(file)}

	if err := readRecord(rd.r, &rd.header); err != nil {
		file.Close()
		return nil, fmt.Errorf("recorder: %s: %w: %v", cfg.Path, ErrBadHeader, err)
	}
	if rd.header.Magic != Magic {
		file.Close()
		return nil, fmt.Errorf("recorder: %s: %w", cfg.Path, ErrBadHeader)
	}

	// Offset of the first frame: bytes consumed by the header minus what bufio still holds
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("recorder: failed to locate frame data: %w", err)
	}
	rd.dataStart = pos - int64(rd.r.Buffered())

	slog.Info("recorder: replay opened",
		"path", cfg.Path,
		"session_id", rd.header.SessionID,
		"mode", rd.header.Mode,
		"created", rd.header.Created,
		"loop", cfg.Loop,
	)

	return rd, nil
}

// Header returns the recording header.
func (rd *Reader) Header() Header {
	return rd.header
}

// Capture implements edgeview.CaptureSource.
func (rd *Reader) Capture() ([]byte, error) {
	var rec Frame
	err := readRecord(rd.r, &rec)
	if errors.Is(err, io.EOF) && rd.cfg.Loop && rd.frames > 0 {
		if err := rd.rewind(); err != nil {
			return nil, err
		}
		err = readRecord(rd.r, &rec)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("recorder: replay %s: %w", rd.cfg.Path, err)
	}

	rd.frames++
	return rec.Data, nil
}

func (rd *Reader) rewind() error {
	if _, err := rd.file.Seek(rd.dataStart, io.SeekStart); err != nil {
		return fmt.Errorf("recorder: rewind %s: %w", rd.cfg.Path, err)
	}
	rd.r.Reset(rd.file)
	rd.rewinds++
	slog.Debug("recorder: replay rewound", "path", rd.cfg.Path, "rewinds", rd.rewinds)
	return nil
}

// Close releases the file.
func (rd *Reader) Close() error {
	return rd.file.Close()
}
