package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/metrics"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/report"
	"github.com/rainbowrelax/relax-cli/internal/timeline"
)

// ErrNoSession is returned by controller operations when no session is hosted
var ErrNoSession = errors.New("no active session")

type ControllerConfig struct {
	Clock      timeline.Clock
	IntroDelay time.Duration
	Metrics    *metrics.Manager
	Reports    report.Writer
	// Affirmations closes completed runs with a message; nil leaves the
	// report without one
	Affirmations *report.Affirmations
	// OnSession is called with every new session before it starts, e.g. to
	// attach observers
	OnSession func(*Session)
}

// Controller hosts the current session of a long-running process and drives
// its ticks. Starting a new session tears the previous one down.
type Controller struct {
	mu      sync.RWMutex
	cfg     ControllerConfig
	current *Session
	unsub   []func()
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = timeline.SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewDetachedManager()
	}
	if cfg.Reports == nil {
		cfg.Reports = report.Discard{}
	}
	return &Controller{cfg: cfg}
}

// Start replaces the current session with a new run of def
func (c *Controller) Start(def *exercise.Definition, minutes int) (*Session, error) {
	if def == nil {
		return nil, fmt.Errorf("start session: %w", exercise.ErrNotFound)
	}
	if minutes <= 0 {
		return nil, fmt.Errorf("start session: minutes must be positive, got %d", minutes)
	}

	opts := Options{
		Clock:      c.cfg.Clock,
		IntroDelay: c.cfg.IntroDelay,
	}
	if c.cfg.Affirmations != nil {
		opts.Affirm = c.cfg.Affirmations.Next
	}
	sess := New(def, minutes, opts)

	c.mu.Lock()
	previous := c.teardownLocked()
	c.current = sess
	c.unsub = c.observe(sess)
	c.mu.Unlock()

	if previous != nil {
		c.finish(previous)
	}

	if c.cfg.OnSession != nil {
		c.cfg.OnSession(sess)
	}

	c.cfg.Metrics.CounterSessionsStarted.WithLabelValues(def.ID).Inc()
	c.cfg.Metrics.GaugeActiveSessions.Set(1)
	log.WithFields(log.Fields{
		"exercise": def.ID,
		"minutes":  minutes,
		"run_id":   sess.RunID(),
	}).Info("session started")

	sess.Start()
	return sess, nil
}

// Current returns the hosted session, or nil
func (c *Controller) Current() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Controller) Pause() error  { return c.apply((*Session).Pause) }
func (c *Controller) Resume() error { return c.apply((*Session).Resume) }
func (c *Controller) Toggle() error { return c.apply((*Session).Toggle) }
func (c *Controller) Reset() error  { return c.apply((*Session).Reset) }

// Do runs a named control action: pause, resume, toggle or reset
func (c *Controller) Do(action string) error {
	switch action {
	case "pause":
		return c.Pause()
	case "resume":
		return c.Resume()
	case "toggle":
		return c.Toggle()
	case "reset":
		return c.Reset()
	default:
		return fmt.Errorf("unknown session action: %q", action)
	}
}

// Change switches the hosted session to def and/or a new length without
// replacing it. A nil def keeps the exercise; minutes of 0 keep the length.
func (c *Controller) Change(def *exercise.Definition, minutes int) (*Session, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("change session: minutes must be positive, got %d", minutes)
	}
	sess := c.Current()
	if sess == nil {
		return nil, ErrNoSession
	}

	if def != nil {
		sess.ChangeExercise(def)
	}
	if minutes > 0 && minutes != sess.Minutes() {
		sess.ChangeMinutes(minutes)
	}
	log.WithFields(log.Fields{
		"exercise": sess.Definition().ID,
		"minutes":  sess.Minutes(),
		"run_id":   sess.RunID(),
	}).Info("session changed")
	return sess, nil
}

func (c *Controller) apply(fn func(*Session)) error {
	sess := c.Current()
	if sess == nil {
		return ErrNoSession
	}
	fn(sess)
	return nil
}

// Stop tears the current session down and returns its report
func (c *Controller) Stop() (models.SessionReport, error) {
	c.mu.Lock()
	sess := c.teardownLocked()
	c.mu.Unlock()

	if sess == nil {
		return models.SessionReport{}, ErrNoSession
	}
	return c.finish(sess), nil
}

// Run ticks the hosted session every interval and sends the frames to out
// until ctx is done. Ticks without a session produce nothing.
func (c *Controller) Run(ctx context.Context, interval time.Duration, out chan<- models.Frame) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sess := c.Current()
			if sess == nil {
				continue
			}

			frame := sess.Tick()
			select {
			case out <- frame:
				c.cfg.Metrics.CounterFramesEmitted.Inc()
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close stops the hosted session, if any
func (c *Controller) Close() error {
	_, err := c.Stop()
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	return err
}

func (c *Controller) observe(sess *Session) []func() {
	m := c.cfg.Metrics
	onPhase := sess.PhaseChanges().Subscribe(func(pc PhaseChange) {
		m.CounterPhaseTransitions.WithLabelValues(pc.Exercise, pc.Phase.Name).Inc()
	})
	onComplete := sess.Completions().Subscribe(func(r models.SessionReport) {
		m.CounterSessionsCompleted.WithLabelValues(r.Exercise).Inc()
		m.HistSessionDuration.Observe(float64(r.ElapsedSeconds))
		c.writeReport(&r)
		log.WithFields(log.Fields{
			"exercise": r.Exercise,
			"run_id":   r.RunID,
			"cycles":   r.CompletedCycles,
		}).Info("session completed")
	})
	return []func(){onPhase, onComplete}
}

// teardownLocked detaches the current session; the caller finishes it after
// releasing the lock
func (c *Controller) teardownLocked() *Session {
	sess := c.current
	for _, unsubscribe := range c.unsub {
		unsubscribe()
	}
	c.unsub = nil
	c.current = nil
	return sess
}

func (c *Controller) finish(sess *Session) models.SessionReport {
	completed := sess.State() == StateCompleted
	sess.Close()
	r := sess.Report()
	c.cfg.Metrics.GaugeActiveSessions.Set(0)

	// completed runs were written by the completion observer
	if !completed {
		c.writeReport(&r)
		log.WithFields(log.Fields{
			"exercise": r.Exercise,
			"run_id":   r.RunID,
			"elapsed":  r.ElapsedSeconds,
		}).Info("session stopped")
	}
	return r
}

func (c *Controller) writeReport(r *models.SessionReport) {
	if err := c.cfg.Reports.Write(r); err != nil {
		log.WithField("run_id", r.RunID).Errorf("failed to write session report: %s", err)
	}
}
