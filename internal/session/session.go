package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rainbowrelax/relax-cli/internal/animation"
	"github.com/rainbowrelax/relax-cli/internal/events"
	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/timeline"
)

// State is the lifecycle state of a Session
type State int

const (
	StateIdle State = iota
	StateIntro
	StateRunning
	StatePaused
	StateCompleted
	// StateStopped is reached when the session is torn down before its
	// countdown ran out
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIntro:
		return "intro"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further frames will change
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped
}

// PhaseChange is published whenever the session enters a phase. From is -1
// for the first phase of a run.
type PhaseChange struct {
	RunID    string
	Exercise string
	From     int
	To       int
	Phase    exercise.Phase
	Cycle    int
	At       time.Time
}

// StateChange is published on every lifecycle transition
type StateChange struct {
	RunID string
	From  State
	To    State
	At    time.Time
}

type Options struct {
	Clock timeline.Clock
	// IntroDelay is waited before the clocks start; zero starts immediately
	IntroDelay time.Duration
	// Affirm, when set, supplies the closing message of a completed run
	Affirm func() string
}

// Session is one run of an exercise for a fixed number of minutes. It owns
// its CycleClock and CountdownTimer exclusively; every method is safe for
// concurrent use and observers are notified outside the session lock.
type Session struct {
	mu sync.Mutex

	clock      timeline.Clock
	def        *exercise.Definition
	minutes    int
	introDelay time.Duration
	affirm     func() string

	runID      string
	state      State
	introStart time.Time
	// pauseAfterIntro holds a pause requested before the clocks started
	pauseAfterIntro bool

	cycle     *timeline.CycleClock
	countdown *timeline.CountdownTimer

	lastPhase   int
	sequence    int64
	startedAt   time.Time
	endedAt     time.Time
	pauses      int
	transitions int
	reported    bool
	closed      bool
	affirmation string

	phases      *events.Feed[PhaseChange]
	states      *events.Feed[StateChange]
	completions *events.Feed[models.SessionReport]
	done        chan struct{}
}

// New creates an idle session. Call Start to begin.
func New(def *exercise.Definition, minutes int, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = timeline.SystemClock{}
	}
	if opts.IntroDelay < 0 {
		opts.IntroDelay = 0
	}

	return &Session{
		clock:       clock,
		def:         def,
		minutes:     minutes,
		introDelay:  opts.IntroDelay,
		affirm:      opts.Affirm,
		runID:       uuid.New().String(),
		cycle:       timeline.NewCycleClock(clock),
		countdown:   timeline.NewCountdownTimer(clock),
		lastPhase:   -1,
		phases:      events.NewFeed[PhaseChange](false),
		states:      events.NewFeed[StateChange](true),
		completions: events.NewFeed[models.SessionReport](false),
		done:        make(chan struct{}),
	}
}

// PhaseChanges is the feed of phase entries
func (s *Session) PhaseChanges() *events.Feed[PhaseChange] { return s.phases }

// StateChanges is the feed of lifecycle transitions. A new subscriber
// receives the latest transition right away.
func (s *Session) StateChanges() *events.Feed[StateChange] { return s.states }

// Completions receives the report once when the countdown runs out
func (s *Session) Completions() *events.Feed[models.SessionReport] { return s.completions }

// Done is closed when the current run completes or the session is closed.
// Reset after completion starts a new run with a fresh channel.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *Session) Definition() *exercise.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def
}

func (s *Session) Minutes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minutes
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start leaves idle, entering the intro or starting the clocks directly
func (s *Session) Start() {
	s.withLock(func(now time.Time, n *notifier) {
		if s.state != StateIdle || s.closed {
			return
		}
		s.startedAt = now
		if s.introDelay > 0 {
			s.introStart = now
			s.setState(StateIntro, now, n)
			return
		}
		s.beginClocks(now, n)
	})
}

// Tick snapshots the clock once and derives the whole frame from that
// instant, advancing the intro, countdown and phase tracking on the way.
func (s *Session) Tick() models.Frame {
	var frame models.Frame
	s.withLock(func(now time.Time, n *notifier) {
		s.advance(now, n)
		frame = s.frame(now)
	})
	return frame
}

// Pause stops both clocks. During the intro the pause is remembered and
// applied when the clocks start.
func (s *Session) Pause() {
	s.withLock(func(now time.Time, n *notifier) {
		s.pause(now, n)
	})
}

func (s *Session) pause(now time.Time, n *notifier) {
	if s.closed {
		return
	}
	switch s.state {
	case StateIdle, StateIntro:
		s.pauseAfterIntro = true
	case StateRunning:
		s.countdown.PauseAt(now)
		if s.countdown.State() == timeline.CountdownExpired {
			s.complete(now, n)
			return
		}
		s.cycle.PauseAt(now)
		s.pauses++
		s.setState(StatePaused, now, n)
	}
}

// Resume restarts both clocks from where they were paused
func (s *Session) Resume() {
	s.withLock(func(now time.Time, n *notifier) {
		s.resume(now, n)
	})
}

func (s *Session) resume(now time.Time, n *notifier) {
	if s.closed {
		return
	}
	switch s.state {
	case StateIdle, StateIntro:
		s.pauseAfterIntro = false
	case StatePaused:
		s.cycle.ResumeAt(now)
		s.countdown.ResumeAt(now)
		s.setState(StateRunning, now, n)
	}
}

// Toggle pauses a running session and resumes a paused one
func (s *Session) Toggle() {
	s.withLock(func(now time.Time, n *notifier) {
		switch s.state {
		case StateRunning:
			s.pause(now, n)
		case StatePaused:
			s.resume(now, n)
		case StateIdle, StateIntro:
			s.pauseAfterIntro = !s.pauseAfterIntro
		}
	})
}

// Reset starts a new run of the same exercise from position 0 with a full
// countdown. A paused session stays paused; a finished one runs again.
func (s *Session) Reset() {
	s.withLock(func(now time.Time, n *notifier) {
		s.restart(now, n)
	})
}

// ChangeExercise switches the exercise. The clocks are fully reset unless
// the new definition has the same timing.
func (s *Session) ChangeExercise(def *exercise.Definition) {
	if def == nil {
		return
	}
	s.withLock(func(now time.Time, n *notifier) {
		same := s.def.SameTiming(def)
		s.def = def
		if same {
			return
		}
		log.WithFields(log.Fields{"exercise": def.ID, "run_id": s.runID}).Debug("exercise timing changed, resetting clocks")
		s.restart(now, n)
	})
}

// ChangeMinutes sets a new session length and restarts the run
func (s *Session) ChangeMinutes(minutes int) {
	s.withLock(func(now time.Time, n *notifier) {
		s.minutes = minutes
		s.restart(now, n)
	})
}

// Close tears the session down. Observers see a transition to
// StateStopped unless the session already completed; the feeds are closed
// afterwards and every later mutation is ignored.
func (s *Session) Close() {
	s.withLock(func(now time.Time, n *notifier) {
		if s.closed {
			return
		}
		s.advance(now, n)
		s.closed = true
		if !s.state.Terminal() {
			s.cycle.PauseAt(now)
			s.countdown.PauseAt(now)
			s.endedAt = now
			s.setState(StateStopped, now, n)
		}
		n.after(func() {
			s.phases.Close()
			s.states.Close()
			s.completions.Close()
		})
		s.markDone()
	})
}

// Report summarizes the run so far
func (s *Session) Report() models.SessionReport {
	var r models.SessionReport
	s.withLock(func(now time.Time, _ *notifier) {
		r = s.report(now)
	})
	return r
}

func (s *Session) restart(now time.Time, n *notifier) {
	if s.state == StateIdle || s.closed {
		return
	}
	wasPaused := s.state == StatePaused ||
		((s.state == StateIntro) && s.pauseAfterIntro)
	if s.state.Terminal() {
		s.runID = uuid.New().String()
		s.done = make(chan struct{})
		s.reported = false
	}
	s.pauses = 0
	s.transitions = 0
	s.lastPhase = -1
	s.startedAt = now
	s.endedAt = time.Time{}
	s.affirmation = ""
	s.pauseAfterIntro = wasPaused
	s.beginClocks(now, n)
	// a pause carried over from before the reset is not a new pause
	s.pauses = 0
}

func (s *Session) beginClocks(now time.Time, n *notifier) {
	s.cycle.Clear()
	if !s.cycle.StartAt(s.def.CycleDurationSeconds, now) {
		log.WithField("exercise", s.def.ID).Warn("exercise has no usable cycle, animation stays at position 0")
	}
	s.countdown.StartAt(s.minutes*60, now)
	s.setState(StateRunning, now, n)
	s.trackPhase(0, now, n)

	if s.countdown.State() == timeline.CountdownExpired {
		s.complete(now, n)
		return
	}
	if s.pauseAfterIntro {
		s.pauseAfterIntro = false
		s.pause(now, n)
	}
}

// advance moves the state machine up to now
func (s *Session) advance(now time.Time, n *notifier) {
	if s.state == StateIntro {
		introEnd := s.introStart.Add(s.introDelay)
		if now.Before(introEnd) {
			return
		}
		// start at the exact end of the intro so a late tick does not eat
		// into the first phase
		s.beginClocks(introEnd, n)
	}
	if s.state != StateRunning {
		return
	}

	s.countdown.TickAt(now)
	if s.countdown.State() == timeline.CountdownExpired {
		s.complete(now, n)
		return
	}
	s.trackPhase(s.cycle.TickAt(now), now, n)
}

func (s *Session) trackPhase(position float64, now time.Time, n *notifier) {
	info := timeline.ResolvePhase(position, s.def.Phases)
	if len(s.def.Phases) == 0 || info.Index == s.lastPhase {
		return
	}

	change := PhaseChange{
		RunID:    s.runID,
		Exercise: s.def.ID,
		From:     s.lastPhase,
		To:       info.Index,
		Phase:    s.def.Phases[info.Index],
		Cycle:    s.cycle.CompletedCycles(now),
		At:       now,
	}
	s.lastPhase = info.Index
	s.transitions++
	n.after(func() { s.phases.Publish(change) })
}

// complete ends the run at the instant the countdown ran out, which may be
// earlier than now when ticks are sparse
func (s *Session) complete(now time.Time, n *notifier) {
	at := now
	if exp := s.countdown.ExpiredAt(); !exp.IsZero() && exp.Before(now) {
		at = exp
	}
	if s.state == StateRunning {
		s.trackPhase(s.cycle.TickAt(at), at, n)
	}
	s.cycle.PauseAt(at)
	s.endedAt = at
	s.setState(StateCompleted, at, n)
	if s.reported {
		return
	}
	s.reported = true
	if s.affirm != nil {
		s.affirmation = s.affirm()
	}
	r := s.report(at)
	n.after(func() { s.completions.Publish(r) })
	s.markDone()
}

func (s *Session) markDone() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Session) setState(to State, now time.Time, n *notifier) {
	if s.state == to {
		return
	}
	change := StateChange{RunID: s.runID, From: s.state, To: to, At: now}
	s.state = to
	n.after(func() { s.states.Publish(change) })
}

func (s *Session) report(now time.Time) models.SessionReport {
	started := s.startedAt
	if started.IsZero() {
		started = now
	}
	ended := s.endedAt
	if ended.IsZero() {
		ended = now
	}
	return models.SessionReport{
		Schema:           models.ReportSchema,
		ReportID:         uuid.New().String(),
		RunID:            s.runID,
		Exercise:         s.def.ID,
		Minutes:          s.minutes,
		StartedAtUTC:     started.UTC().Format(time.RFC3339),
		EndedAtUTC:       ended.UTC().Format(time.RFC3339),
		ElapsedSeconds:   s.countdown.Elapsed(),
		CompletedCycles:  s.cycle.CompletedCycles(ended),
		PhaseTransitions: s.transitions,
		Pauses:           s.pauses,
		Completed:        s.state == StateCompleted,
		Affirmation:      s.affirmation,
	}
}

func (s *Session) frame(now time.Time) models.Frame {
	s.sequence++

	position := s.cycle.TickAt(now)
	cycleSeconds := s.def.CycleDurationSeconds
	info := timeline.ResolvePhase(position, s.def.Phases)

	phase := models.Phase{
		Index:     info.Index,
		Name:      info.Name,
		Progress:  info.Progress,
		Duration:  info.Duration,
		Remaining: info.Remaining,
	}
	if info.Index < len(s.def.Phases) {
		phase.Instruction = s.def.Phases[info.Index].Instruction
	}

	total := s.minutes * 60
	remaining := total
	if s.countdown.State() != timeline.CountdownIdle {
		total = s.countdown.Total()
		remaining = s.countdown.Remaining()
	}
	countdown := models.Countdown{
		Total:     total,
		Remaining: remaining,
		Elapsed:   s.countdown.Elapsed(),
		Display:   timeline.FormatClock(remaining),
	}
	if s.state == StateIntro {
		countdown.IntroRemaining = s.introStart.Add(s.introDelay).Sub(now).Seconds()
	}

	return models.Frame{
		SchemaVersion: models.FrameSchema,
		FrameID:       uuid.New().String(),
		Timestamp:     models.FormatTimestamp(now),
		Session: models.Session{
			RunID:    s.runID,
			Exercise: s.def.ID,
			Minutes:  s.minutes,
		},
		State: s.state.String(),
		Cycle: models.Cycle{
			Position:  position,
			Duration:  cycleSeconds,
			Completed: s.cycle.CompletedCycles(now),
		},
		Phase:     phase,
		Elements:  animation.Sample(s.def.Elements, position, cycleSeconds),
		Countdown: countdown,
		Meta:      models.Meta{Sequence: s.sequence},
	}
}

// notifier collects observer calls made under the session lock and runs
// them once it is released
type notifier struct {
	calls []func()
}

func (n *notifier) after(fn func()) {
	n.calls = append(n.calls, fn)
}

func (s *Session) withLock(fn func(now time.Time, n *notifier)) {
	n := &notifier{}
	s.mu.Lock()
	fn(s.clock.Now(), n)
	s.mu.Unlock()

	for _, call := range n.calls {
		call()
	}
}
