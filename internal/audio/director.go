package audio

import (
	"sync"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/session"
)

// Director maps session events to audio. It only observes: nothing it does
// feeds back into the session's timing.
type Director struct {
	player Player

	mu      sync.Mutex
	playing map[string]bool
}

func NewDirector(player Player) *Director {
	if player == nil {
		player = NoopPlayer{}
	}
	return &Director{
		player:  player,
		playing: make(map[string]bool),
	}
}

// Attach subscribes to sess and returns a function detaching again. The
// loops of the exercise run while the session runs; every phase entry plays
// the phase cue.
func (d *Director) Attach(sess *session.Session) (detach func()) {
	offPhase := sess.PhaseChanges().Subscribe(func(pc session.PhaseChange) {
		if pc.Phase.Cue == "" {
			return
		}
		d.player.Play(Cue{Name: pc.Phase.Cue, Volume: 1})
	})

	offState := sess.StateChanges().Subscribe(func(sc session.StateChange) {
		switch sc.To {
		case session.StateRunning:
			d.startLoops(sess.Definition())
		case session.StatePaused, session.StateCompleted, session.StateStopped:
			d.stopLoops()
		}
	})

	return func() {
		offPhase()
		offState()
		d.stopLoops()
	}
}

// Playing returns the names of the loops currently playing
func (d *Director) Playing() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.playing))
	for name := range d.playing {
		names = append(names, name)
	}
	return names
}

func (d *Director) startLoops(def *exercise.Definition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cue := range loops(def) {
		if d.playing[cue.Name] {
			continue
		}
		d.playing[cue.Name] = true
		d.player.Play(cue)
	}
}

func (d *Director) stopLoops() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name := range d.playing {
		d.player.Stop(name)
		delete(d.playing, name)
	}
}
