package duel

import (
	"context"
	"fmt"

	"github.com/peterkuimelis/sanctum/internal/engine"
	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// PendingCleanup returns the human's outstanding discard and destroy counts.
func (d *Duel) PendingCleanup() (discard, destroy int) {
	st := d.Snapshot()
	if st == nil {
		return 0, 0
	}
	p := st.Players[d.human]
	return p.MustDiscard, p.MustDestroyCount
}

// Discard discards the card at cardIndex to satisfy the hand limit and
// returns how many discards remain.
func (d *Duel) Discard(ctx context.Context, cardIndex int) (int, error) {
	if !d.callMu.TryLock() {
		return 0, ErrBusy
	}
	defer d.callMu.Unlock()

	s, st, err := d.ready()
	if err != nil {
		return 0, err
	}
	p := st.Players[d.human]
	if p.MustDiscard == 0 {
		return 0, ErrNoPendingChoice
	}
	if cardIndex < 0 || cardIndex >= len(p.Hand) {
		return p.MustDiscard, fmt.Errorf("%w: no card at hand index %d", ErrInvalidTarget, cardIndex)
	}
	return d.discard(ctx, s, d.human, cardIndex, cardName(p.Hand[cardIndex]))
}

// ForcedDestroy destroys the unit in unitIndex to satisfy the board cap and
// returns how many destructions remain.
func (d *Duel) ForcedDestroy(ctx context.Context, unitIndex int) (int, error) {
	if !d.callMu.TryLock() {
		return 0, ErrBusy
	}
	defer d.callMu.Unlock()

	s, st, err := d.ready()
	if err != nil {
		return 0, err
	}
	p := st.Players[d.human]
	if p.MustDestroyCount == 0 {
		return 0, ErrNoPendingChoice
	}
	u := p.Unit(unitIndex)
	if u == nil {
		return p.MustDestroyCount, fmt.Errorf("%w: no unit in slot %d", ErrInvalidTarget, unitIndex+1)
	}
	return d.destroy(ctx, s, d.human, unitIndex, u.Name)
}

func (d *Duel) discard(ctx context.Context, s *game.Session, player, index int, name string) (int, error) {
	before := s.Snapshot().Players[player].MustDiscard
	res, err := d.engine.Discard(ctx, s.ID, player, index)
	if err != nil {
		return before, d.fail(err)
	}
	after := res.State.Players[player].MustDiscard
	d.log(log.NewDiscardEvent(res.State.TurnNumber, string(res.State.Phase), player, name, after))
	d.apply(s, res.State, nil)
	if after >= before {
		return after, d.fail(fmt.Errorf("%w: must_discard went from %d to %d", ErrNoProgress, before, after))
	}
	return after, nil
}

func (d *Duel) destroy(ctx context.Context, s *game.Session, player, index int, name string) (int, error) {
	before := s.Snapshot().Players[player].MustDestroyCount
	res, err := d.engine.ForcedDestroy(ctx, s.ID, player, index)
	if err != nil {
		return before, d.fail(err)
	}
	after := res.State.Players[player].MustDestroyCount
	d.log(log.NewForcedDestroyEvent(res.State.TurnNumber, string(res.State.Phase), player, name, after))
	d.apply(s, res.State, nil)
	if after >= before {
		return after, d.fail(fmt.Errorf("%w: must_destroy went from %d to %d", ErrNoProgress, before, after))
	}
	return after, nil
}

// resolveCleanup satisfies the autonomous side's obligations, re-polling
// after every call until both counters reach zero. Destruction picks the
// lowest-ATK unit and discards take the last card in hand.
func (d *Duel) resolveCleanup(ctx context.Context, s *game.Session, player int) error {
	for {
		p := s.Snapshot().Players[player]
		switch {
		case p.MustDestroyCount > 0:
			slot := weakestUnit(&p)
			if slot < 0 {
				return d.fail(&engine.ProtocolError{Op: "rotfall_destroy", Detail: "destroy required with an empty battlefield"})
			}
			if _, err := d.destroy(ctx, s, player, slot, cardName(p.Battlefield[slot])); err != nil {
				return err
			}
		case p.MustDiscard > 0:
			n := p.HandCount
			if n == 0 {
				return d.fail(&engine.ProtocolError{Op: "discard", Detail: "discard required with an empty hand"})
			}
			name := "a card"
			if len(p.Hand) == n {
				name = cardName(p.Hand[n-1])
			}
			if _, err := d.discard(ctx, s, player, n-1, name); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// weakestUnit returns the occupied slot with the lowest ATK, or -1.
func weakestUnit(p *game.PlayerState) int {
	slot, best := -1, 0
	for _, i := range p.OccupiedSlots() {
		atk := p.Battlefield[i].DisplayStats().ATK
		if slot < 0 || atk < best {
			slot, best = i, atk
		}
	}
	return slot
}
