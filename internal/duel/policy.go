package duel

import (
	"math/rand/v2"
	"sync"

	"github.com/peterkuimelis/sanctum/internal/game"
)

// DefaultActivation is the autonomous side's trap activation probability.
const DefaultActivation = 0.8

// TrapDecision is an owner's answer to a trap window.
type TrapDecision struct {
	Activate bool
	Target   *game.Target
}

// PolicyContext is what an autonomous policy may look at.
type PolicyContext struct {
	State   *game.TurnState
	Trigger *game.Trigger
}

// Policy decides trap windows for the autonomous side.
type Policy func(kind game.TriggerKind, pc PolicyContext) TrapDecision

// RandomPolicy activates with probability p whenever a legal target exists
// or none is needed, picking targets uniformly. Not safe for concurrent use;
// the duel only calls it while holding its exchange lock.
func RandomPolicy(rng *rand.Rand, p float64) Policy {
	return func(_ game.TriggerKind, pc PolicyContext) TrapDecision {
		tr := pc.Trigger
		if tr.RequiresTarget && len(tr.Targets) == 0 {
			return TrapDecision{}
		}
		if rng.Float64() >= p {
			return TrapDecision{}
		}
		d := TrapDecision{Activate: true}
		if len(tr.Targets) > 0 {
			t := tr.Targets[rng.IntN(len(tr.Targets))]
			d.Target = &t
		}
		return d
	}
}

// NewRandomPolicy seeds a RandomPolicy. A zero seed picks one at random.
func NewRandomPolicy(seed uint64, p float64) Policy {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return RandomPolicy(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), p)
}

// SharedPolicy serializes calls to p so several duels can use it at once.
func SharedPolicy(p Policy) Policy {
	var mu sync.Mutex
	return func(kind game.TriggerKind, pc PolicyContext) TrapDecision {
		mu.Lock()
		defer mu.Unlock()
		return p(kind, pc)
	}
}

// AlwaysActivate activates every trap, taking the first target.
func AlwaysActivate(_ game.TriggerKind, pc PolicyContext) TrapDecision {
	d := TrapDecision{Activate: true}
	if len(pc.Trigger.Targets) > 0 {
		t := pc.Trigger.Targets[0]
		d.Target = &t
	}
	return d
}

// NeverActivate declines every trap.
func NeverActivate(game.TriggerKind, PolicyContext) TrapDecision {
	return TrapDecision{}
}
