package report

import (
	"math/rand/v2"
	"sync"
)

// DefaultAffirmations close a completed session
var DefaultAffirmations = []string{
	"You took a moment for yourself. Well done.",
	"Your breath is always there to come back to.",
	"A calmer mind is a few breaths away, and you just took them.",
	"Carry this stillness into whatever comes next.",
	"Small pauses add up. Thank you for this one.",
	"You showed up for yourself today.",
	"Notice how your body feels right now.",
	"Every slow breath tells your body it is safe.",
}

// Affirmations hands out closing messages without repeating one until
// every message has been shown. Safe for concurrent use.
type Affirmations struct {
	mu       sync.Mutex
	messages []string
	unseen   []int
	last     int
	rng      *rand.Rand
}

// NewAffirmations creates a picker over messages. rng may be nil for a
// randomly seeded source.
func NewAffirmations(messages []string, rng *rand.Rand) *Affirmations {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Affirmations{
		messages: append([]string(nil), messages...),
		last:     -1,
		rng:      rng,
	}
}

// Next returns the next message, or "" when there are none. The message
// that closed one round never opens the next.
func (a *Affirmations) Next() string {
	if a == nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.messages) == 0 {
		return ""
	}
	fresh := len(a.unseen) == 0
	if fresh {
		for i := range a.messages {
			a.unseen = append(a.unseen, i)
		}
	}

	i := a.rng.IntN(len(a.unseen))
	if fresh && a.unseen[i] == a.last && len(a.unseen) > 1 {
		i = (i + 1 + a.rng.IntN(len(a.unseen)-1)) % len(a.unseen)
	}
	idx := a.unseen[i]
	a.unseen = append(a.unseen[:i], a.unseen[i+1:]...)
	a.last = idx
	return a.messages[idx]
}
