package duel

import (
	"context"
	"fmt"

	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// PlayReport summarizes playing a card from hand.
type PlayReport struct {
	Message     string
	Cancelled   bool            // a trap voided the play
	NeedsTarget bool            // a target choice is now pending
	TargetKind  game.TargetKind // set with NeedsTarget
	Targets     []game.Target   // legal targets when NeedsTarget
}

// PlayCard plays a card from the human's hand. A trap window suspends the
// play and it is resubmitted at most once. A technique that needs a target
// opens an effect-target choice.
func (d *Duel) PlayCard(ctx context.Context, cardID string) (*PlayReport, error) {
	if !d.callMu.TryLock() {
		return nil, ErrBusy
	}
	defer d.callMu.Unlock()

	s, st, err := d.humanTurn()
	if err != nil {
		return nil, err
	}
	hand := st.Players[d.human]
	idx := hand.HandIndex(cardID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: card %q is not in hand", ErrInvalidTarget, cardID)
	}
	card := hand.Hand[idx]
	d.mu.Lock()
	d.selecting = selectNone
	d.mu.Unlock()

	res, err := d.engine.PlayCard(ctx, s.ID, d.human, cardID, false)
	if err != nil {
		return nil, d.fail(err)
	}
	report := &PlayReport{}

	if res.Trigger != nil {
		d.apply(s, res.State, nil)
		if err := d.suspend(PendingAction{Kind: ActionPlayCard, Player: d.human, CardID: cardID, CardName: card.Name}); err != nil {
			return nil, d.fail(err)
		}
		out, err := d.resolveInterrupt(ctx, s, res.Trigger, 0)
		pa := d.consume()
		if err != nil {
			return nil, d.fail(err)
		}
		cur := s.Snapshot()
		if out.Cancel || cur.Over() {
			report.Cancelled = true
			d.log(log.NewActionCancelledEvent(cur.TurnNumber, string(cur.Phase), d.human, "play of "+card.Name))
			return report, nil
		}

		res, err = d.engine.PlayCard(ctx, s.ID, pa.Player, pa.CardID, true)
		if err != nil {
			return nil, d.fail(err)
		}
		if res.Trigger != nil {
			d.apply(s, res.State, nil)
			return nil, d.fail(fmt.Errorf("%w: play of %s", ErrDoubleInterrupt, pa.CardName))
		}
	}

	report.Message = res.Message
	d.log(log.NewPlayCardEvent(res.State.TurnNumber, string(res.State.Phase), d.human, card.Name, res.Message))
	d.apply(s, res.State, []string{res.Message})

	if res.NeedsTarget {
		targets := res.State.Targets(d.human, res.TargetKind)
		if len(targets) == 0 {
			d.log(log.NewEffectCancelEvent(res.State.TurnNumber, string(res.State.Phase), d.human, card.Name, "no legal target"))
			return report, nil
		}
		report.NeedsTarget = true
		report.TargetKind = res.TargetKind
		report.Targets = targets
		d.mu.Lock()
		d.effect = &effectRequest{cardID: cardID, cardName: card.Name, kind: res.TargetKind, targets: targets}
		d.mu.Unlock()
		d.notify()
	}
	return report, nil
}

// ResolveTarget completes the pending technique against a unit. A rejected
// target leaves the request open.
func (d *Duel) ResolveTarget(ctx context.Context, target game.Target) (string, error) {
	if !d.callMu.TryLock() {
		return "", ErrBusy
	}
	defer d.callMu.Unlock()

	s, st, err := d.ready()
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	req := d.effect
	d.mu.Unlock()
	if req == nil {
		return "", ErrNoPendingChoice
	}
	legal := false
	for _, t := range req.targets {
		if t == target {
			legal = true
			break
		}
	}
	if !legal {
		return "", fmt.Errorf("%w: %s cannot target %s", ErrInvalidTarget, req.cardName, target)
	}

	res, err := d.engine.ResolveTarget(ctx, s.ID, d.human, req.cardID, target)
	if err != nil {
		return "", d.fail(err)
	}
	d.mu.Lock()
	d.effect = nil
	d.mu.Unlock()

	name := cardName(st.Players[target.Player].Unit(target.Index))
	d.log(log.NewEffectTargetEvent(st.TurnNumber, string(st.Phase), d.human, req.cardName, name))
	d.replay(res.State, d.human, res.Messages)
	d.apply(s, res.State, res.Messages)
	var msg string
	if len(res.Messages) > 0 {
		msg = res.Messages[0]
	}
	return msg, nil
}

// CancelEffect drops the pending effect-target request locally.
func (d *Duel) CancelEffect() error {
	d.mu.Lock()
	req := d.effect
	d.effect = nil
	s := d.session
	d.mu.Unlock()
	if req == nil {
		return ErrNoPendingChoice
	}
	st := s.Snapshot()
	d.log(log.NewEffectCancelEvent(st.TurnNumber, string(st.Phase), d.human, req.cardName, "cancelled"))
	d.notify()
	return nil
}
