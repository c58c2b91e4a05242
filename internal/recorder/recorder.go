package recorder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rainbowrelax/relax-cli/internal/encoding"
	"github.com/rainbowrelax/relax-cli/internal/models"
)

// Recorder writes frames to an NDJSON file
type Recorder struct {
	file    *os.File
	writer  *bufio.Writer
	encoder encoding.Encoder
	count   int
	closed  bool
	mu      sync.Mutex
}

// NewRecorder creates a new recorder. Recordings are always JSON so they
// stay line-delimited regardless of the wire encoding.
func NewRecorder(filename string) (*Recorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	return &Recorder{
		file:    file,
		writer:  bufio.NewWriter(file),
		encoder: encoding.NewJSONEncoder(),
	}, nil
}

// Record writes one frame followed by a newline
func (r *Recorder) Record(frame models.Frame) error {
	data, err := r.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := r.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	r.count++

	return nil
}

// RecordFromChannel records frames until ctx is done or the channel closes,
// then closes the recorder
func (r *Recorder) RecordFromChannel(ctx context.Context, frames <-chan models.Frame, onEntry func()) error {
	for {
		select {
		case <-ctx.Done():
			return r.Close()
		case frame, ok := <-frames:
			if !ok {
				return r.Close()
			}
			if err := r.Record(frame); err != nil {
				r.Close()
				return err
			}
			if onEntry != nil {
				onEntry()
			}
		}
	}
}

// Count returns the number of frames written so far
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Flush flushes the buffer to disk
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Flush()
}

// Close flushes and closes the recorder. Later calls are no-ops.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.writer.Flush(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to flush buffer: %w", err)
	}

	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}
