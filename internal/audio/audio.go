package audio

import (
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
)

// Cue is a request to play a named asset. Resolving the name to audio data
// is up to the Player.
type Cue struct {
	Name   string
	Volume float64
	Loop   bool
}

// Player plays cues. Implementations handle their errors internally; Play
// and Stop are fire-and-forget.
type Player interface {
	Play(cue Cue)
	Stop(name string)
}

// NoopPlayer does nothing. Use it when audio is disabled.
type NoopPlayer struct{}

func (NoopPlayer) Play(Cue)    {}
func (NoopPlayer) Stop(string) {}

// LogPlayer logs every cue at debug level
type LogPlayer struct{}

func (LogPlayer) Play(cue Cue) {
	log.WithFields(log.Fields{
		"cue":    cue.Name,
		"volume": cue.Volume,
		"loop":   cue.Loop,
	}).Debug("audio play")
}

func (LogPlayer) Stop(name string) {
	log.WithField("cue", name).Debug("audio stop")
}

// BellPlayer rings the terminal bell for one-shot cues. Loops are ignored.
type BellPlayer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewBellPlayer(out io.Writer) *BellPlayer {
	return &BellPlayer{out: out}
}

func (p *BellPlayer) Play(cue Cue) {
	if cue.Loop || cue.Volume <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.out, "\a"); err != nil {
		log.WithField("cue", cue.Name).Debugf("bell failed: %s", err)
	}
}

func (p *BellPlayer) Stop(string) {}

// MultiPlayer forwards to several players
type MultiPlayer []Player

func (m MultiPlayer) Play(cue Cue) {
	for _, p := range m {
		p.Play(cue)
	}
}

func (m MultiPlayer) Stop(name string) {
	for _, p := range m {
		p.Stop(name)
	}
}

// loops returns the looping tracks an exercise plays while it runs
func loops(def *exercise.Definition) []Cue {
	if def == nil || def.Audio == nil {
		return nil
	}
	var cues []Cue
	for _, track := range []*exercise.Track{def.Audio.Background, def.Audio.Instructions} {
		if track == nil || track.Name == "" {
			continue
		}
		cues = append(cues, Cue{Name: track.Name, Volume: track.Volume, Loop: track.Loop})
	}
	return cues
}
