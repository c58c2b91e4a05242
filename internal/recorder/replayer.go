package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rainbowrelax/relax-cli/internal/models"
)

// maxLine bounds a single recorded frame
const maxLine = 1 << 20

// Replayer reads and replays frames from an NDJSON file
type Replayer struct {
	filename string
	speed    float64
	loop     bool
	summary  *Summary
}

// Summary describes a recording without replaying it
type Summary struct {
	Frames   int
	First    models.Frame
	Last     models.Frame
	Duration time.Duration
}

// NewReplayer creates a new replayer. A non-positive speed replays at 1x.
func NewReplayer(filename string, speed float64, loop bool) *Replayer {
	if speed <= 0 {
		speed = 1
	}
	return &Replayer{
		filename: filename,
		speed:    speed,
		loop:     loop,
	}
}

// Summarize reads the file once and caches count, first and last frame
func (r *Replayer) Summarize() (*Summary, error) {
	if r.summary != nil {
		return r.summary, nil
	}

	s := &Summary{}
	err := r.scan(func(index, _ int, frame models.Frame) error {
		s.Frames++
		if index == 0 {
			s.First = frame
		}
		s.Last = frame
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Frames == 0 {
		return nil, errors.New("recording file is empty")
	}

	first, err := s.First.Time()
	if err != nil {
		return nil, fmt.Errorf("failed to parse first timestamp: %w", err)
	}
	last, err := s.Last.Time()
	if err != nil {
		return nil, fmt.Errorf("failed to parse last timestamp: %w", err)
	}
	s.Duration = last.Sub(first)

	r.summary = s
	return s, nil
}

// Replay sends frames to output honoring their timestamps, scaled by speed
func (r *Replayer) Replay(ctx context.Context, output chan<- models.Frame) error {
	for {
		if err := r.replayOnce(ctx, output); err != nil {
			return err
		}

		if !r.loop {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (r *Replayer) replayOnce(ctx context.Context, output chan<- models.Frame) error {
	var last time.Time

	return r.scan(func(index, lineNum int, frame models.Frame) error {
		ts, err := frame.Time()
		if err != nil {
			return fmt.Errorf("failed to parse timestamp at line %d: %w", lineNum, err)
		}

		if index > 0 {
			delay := time.Duration(float64(ts.Sub(last)) / r.speed)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		last = ts

		select {
		case <-ctx.Done():
			return ctx.Err()
		case output <- frame:
		}
		return nil
	})
}

// scan calls fn for every frame; index counts frames, lineNum counts lines
func (r *Replayer) scan(fn func(index, lineNum int, frame models.Frame) error) error {
	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	index, lineNum := 0, 0

	for scanner.Scan() {
		lineNum++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var frame models.Frame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			return fmt.Errorf("failed to parse frame at line %d: %w", lineNum, err)
		}
		if err := fn(index, lineNum, frame); err != nil {
			return err
		}
		index++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	return nil
}
