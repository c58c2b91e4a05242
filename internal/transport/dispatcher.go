package transport

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/rainbowrelax/relax-cli/internal/models"
)

// Dispatcher fans the ticker's frames out to every transport. A transport
// that falls behind misses frames instead of stalling the tick loop; each
// miss is counted and reported through OnDrop.
type Dispatcher struct {
	in    <-chan models.Frame
	depth int

	mu   sync.Mutex
	outs []chan models.Frame

	missed atomic.Int64
	onDrop func(n int)
}

// NewDispatcher reads frames from in; every subscriber is buffered to depth
func NewDispatcher(in <-chan models.Frame, depth int) *Dispatcher {
	return &Dispatcher{in: in, depth: depth}
}

// OnDrop is called with how many subscribers missed a frame. Set it before
// Run.
func (d *Dispatcher) OnDrop(fn func(n int)) {
	d.onDrop = fn
}

// Subscribe adds a transport. Frames sent before the call are not replayed,
// so wire every transport before Run. The channel is closed when Run returns.
func (d *Dispatcher) Subscribe() <-chan models.Frame {
	out := make(chan models.Frame, d.depth)
	d.mu.Lock()
	d.outs = append(d.outs, out)
	d.mu.Unlock()
	return out
}

func (d *Dispatcher) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.outs)
}

// Dropped is the running total of frames a subscriber missed
func (d *Dispatcher) Dropped() int64 {
	return d.missed.Load()
}

// Run forwards frames until in is closed or ctx is done
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-d.in:
			if !ok {
				return
			}
			d.fanOut(ctx, frame)
		}
	}
}

func (d *Dispatcher) fanOut(ctx context.Context, frame models.Frame) {
	d.mu.Lock()
	outs := d.outs
	d.mu.Unlock()

	missed := 0
	for _, out := range outs {
		select {
		case out <- frame:
		case <-ctx.Done():
			return
		default:
			missed++
		}
	}
	if missed == 0 {
		return
	}

	d.missed.Add(int64(missed))
	log.WithFields(log.Fields{
		"sequence":    frame.Meta.Sequence,
		"subscribers": missed,
	}).Debug("frame missed by slow subscriber")
	if d.onDrop != nil {
		d.onDrop(missed)
	}
}

func (d *Dispatcher) closeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, out := range d.outs {
		close(out)
	}
}
