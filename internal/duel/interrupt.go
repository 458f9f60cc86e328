package duel

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/peterkuimelis/sanctum/internal/engine"
	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// maxInterruptDepth is how deep trap windows may nest: a trap plus one
// counter to it. Anything deeper is declined on the owner's behalf.
const maxInterruptDepth = 1

// Outcome tells the caller of the resolver what became of the suspended
// action.
type Outcome struct {
	Activated bool
	Cancel    bool
	Redirect  *game.Target
	Negated   bool // this trap was countered
	Stale     bool
}

// resolveInterrupt obtains the owner's decision for a trap window, submits
// it, and recurses once into a counter window if the engine opens one.
// Callers must hold callMu.
func (d *Duel) resolveInterrupt(ctx context.Context, s *game.Session, tr *game.Trigger, depth int) (Outcome, error) {
	st := s.Snapshot()
	phase := string(st.Phase)
	if tr.Kind == game.TriggerCounter {
		d.log(log.NewCounterTriggerEvent(st.TurnNumber, phase, tr.Owner, tr.CardName(), tr.Message))
	} else {
		d.log(log.NewTrapTriggerEvent(st.TurnNumber, phase, tr.Owner, tr.CardName(), tr.Kind.String(), tr.Message))
	}

	var dec TrapDecision
	if depth > maxInterruptDepth {
		d.diag.Warn("interrupt nested too deeply, declining",
			zap.String("session", s.ID),
			zap.String("trap", tr.CardName()),
			zap.Int("depth", depth))
	} else {
		var err error
		if dec, err = d.decide(ctx, st, tr); err != nil {
			return Outcome{}, err
		}
	}
	if dec.Activate && dec.Target == nil {
		dec.Target = tr.AutoTarget()
	}

	res, err := d.engine.ActivateTrap(ctx, s.ID, engine.TrapRequest{
		Player:      tr.Owner,
		Slot:        tr.Slot,
		Activate:    dec.Activate,
		Target:      dec.Target,
		TriggerData: tr.Data,
	})
	switch {
	case errors.Is(err, engine.ErrStale):
		d.log(log.NewStaleEvent(st.TurnNumber, phase, tr.Owner, tr.CardName()))
		return Outcome{Stale: true}, nil
	case engine.IsRejected(err):
		// The trap did not go off; the suspended action is unaffected.
		d.fail(err)
		return Outcome{}, nil
	case err != nil:
		return Outcome{}, err
	}

	d.apply(s, res.State, nil)
	st = res.State
	phase = string(st.Phase)
	if res.Activated {
		d.log(log.NewTrapActivateEvent(st.TurnNumber, phase, tr.Owner, tr.CardName()))
	} else {
		d.log(log.NewTrapDeclineEvent(st.TurnNumber, phase, tr.Owner, tr.CardName()))
	}
	for _, line := range res.Effects {
		d.log(log.NewTrapEffectEvent(st.TurnNumber, phase, tr.Owner, tr.CardName(), line))
	}

	out := Outcome{
		Activated: res.Activated,
		Cancel:    res.Activated && res.Cancel,
		Redirect:  res.Redirect,
		Negated:   res.Negated,
	}
	if !res.Activated {
		out.Redirect = nil
	}

	if res.Counter != nil {
		res.Counter.Kind = game.TriggerCounter
		if res.Counter.Message == "" {
			res.Counter.Message = tr.CardName()
		}
		counter, err := d.resolveInterrupt(ctx, s, res.Counter, depth+1)
		if err != nil {
			return Outcome{}, err
		}
		if counter.Activated && counter.Negated {
			out.Cancel = false
			out.Redirect = nil
		}
	}
	return out, nil
}

// decide asks the policy for the autonomous side and the decider for the
// human, re-asking the human until the target is legal.
func (d *Duel) decide(ctx context.Context, st *game.TurnState, tr *game.Trigger) (TrapDecision, error) {
	if tr.Owner != d.human {
		dec := d.policy(tr.Kind, PolicyContext{State: st, Trigger: tr})
		if dec.Activate && tr.NeedsChoice() && (dec.Target == nil || !tr.HasTarget(*dec.Target)) {
			dec.Target = tr.AutoTarget()
			if dec.Target == nil {
				t := tr.Targets[0]
				dec.Target = &t
			}
		}
		return dec, nil
	}

	if d.decider == nil {
		d.diag.Warn("no trap decider, declining", zap.String("trap", tr.CardName()))
		return TrapDecision{}, nil
	}

	d.mu.Lock()
	d.awaiting = tr
	d.mu.Unlock()
	d.notify()
	defer func() {
		d.mu.Lock()
		d.awaiting = nil
		d.mu.Unlock()
	}()

	for {
		dec, err := d.decider.DecideTrap(ctx, st, tr)
		if err != nil {
			return TrapDecision{}, err
		}
		if !dec.Activate {
			return TrapDecision{}, nil
		}
		if !tr.NeedsChoice() {
			dec.Target = tr.AutoTarget()
			return dec, nil
		}
		if dec.Target != nil && tr.HasTarget(*dec.Target) {
			return dec, nil
		}
		d.log(log.NewRejectedEvent(st.TurnNumber, string(st.Phase), d.human, ErrInvalidTarget.Error()))
	}
}

// suspend records the action a trap interrupted. A second suspension before
// the first is consumed is a protocol violation.
func (d *Duel) suspend(pa PendingAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return ErrDoubleInterrupt
	}
	d.pending = &pa
	if pa.Kind == ActionAttack {
		d.combat = CombatInterruptPending
	}
	return nil
}

// consume clears and returns the suspended action.
func (d *Duel) consume() *PendingAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	pa := d.pending
	d.pending = nil
	return pa
}

// resolveStray handles a trap window that interrupted no action of ours,
// such as one reported by advance_phase.
func (d *Duel) resolveStray(ctx context.Context, s *game.Session, tr *game.Trigger) error {
	_, err := d.resolveInterrupt(ctx, s, tr, 0)
	return err
}
