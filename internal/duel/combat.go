package duel

import (
	"context"
	"fmt"

	"github.com/peterkuimelis/sanctum/internal/engine"
	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// CombatReport summarizes one declared attack.
type CombatReport struct {
	Attacker          int
	Defender          int // final defender slot, after any redirect
	Cancelled         bool
	Redirected        bool
	CombatLog         []string
	AttackerDestroyed bool
	DefenderDestroyed bool
	PierceDamage      int // > 0 when a pierce choice is now pending
}

// DeclareAttack attacks an enemy unit with one of the human's units. If a
// trap interrupts, the attack is resubmitted at most once after the trap
// resolves, or dropped if the trap cancelled it.
func (d *Duel) DeclareAttack(ctx context.Context, attacker, defender int) (*CombatReport, error) {
	if !d.callMu.TryLock() {
		return nil, ErrBusy
	}
	defer d.callMu.Unlock()

	s, st, err := d.humanTurn()
	if err != nil {
		return nil, err
	}
	if st.Phase != game.PhaseCombat {
		return nil, fmt.Errorf("%w: attacks need the combat phase, not %s", ErrWrongPhase, st.Phase)
	}
	atk := st.Players[d.human].Unit(attacker)
	if atk == nil {
		return nil, fmt.Errorf("%w: no unit in attacker slot %d", ErrInvalidTarget, attacker+1)
	}
	if atk.IsExhausted {
		return nil, fmt.Errorf("%w: %s is exhausted", ErrInvalidTarget, atk.Name)
	}
	def := st.Players[d.opponent].Unit(defender)
	if def == nil {
		return nil, fmt.Errorf("%w: no unit in defender slot %d", ErrInvalidTarget, defender+1)
	}

	d.mu.Lock()
	d.selecting = selectNone
	d.combat = CombatAttackDeclared
	d.mu.Unlock()
	d.log(log.NewAttackDeclareEvent(st.TurnNumber, string(st.Phase), d.human, atk.Name, def.Name))

	report := &CombatReport{Attacker: attacker, Defender: defender}
	res, err := d.engine.DeclareAttack(ctx, s.ID, d.human, attacker, defender, false)
	if err != nil {
		d.setCombat(CombatIdle)
		return nil, d.fail(err)
	}

	if res.Trigger != nil {
		d.apply(s, res.State, nil)
		if err := d.suspend(PendingAction{Kind: ActionAttack, Player: d.human, Attacker: attacker, Defender: defender}); err != nil {
			return nil, d.fail(err)
		}
		out, err := d.resolveInterrupt(ctx, s, res.Trigger, 0)
		pa := d.consume()
		if err != nil {
			d.setCombat(CombatIdle)
			return nil, d.fail(err)
		}

		cur := s.Snapshot()
		if out.Cancel || cur.Over() {
			d.setCombat(CombatIdle)
			report.Cancelled = true
			d.log(log.NewActionCancelledEvent(cur.TurnNumber, string(cur.Phase), d.human, "attack"))
			return report, nil
		}
		if out.Redirect != nil {
			pa.Defender = out.Redirect.Index
			report.Defender = pa.Defender
			report.Redirected = true
			d.log(log.NewActionRedirectedEvent(cur.TurnNumber, string(cur.Phase), d.human, "attack", out.Redirect.String()))
		}

		res, err = d.engine.DeclareAttack(ctx, s.ID, pa.Player, pa.Attacker, pa.Defender, true)
		if err != nil {
			d.setCombat(CombatIdle)
			return nil, d.fail(err)
		}
		if res.Trigger != nil {
			d.apply(s, res.State, nil)
			return nil, d.fail(fmt.Errorf("%w: attack from slot %d", ErrDoubleInterrupt, pa.Attacker+1))
		}
	}

	d.setCombat(CombatBaseDamageResolved)
	d.replay(res.State, d.human, res.CombatLog)
	d.apply(s, res.State, res.CombatLog)
	report.CombatLog = res.CombatLog
	report.AttackerDestroyed = res.AttackerDestroyed
	report.DefenderDestroyed = res.DefenderDestroyed

	if res.PierceAvailable && !res.State.Over() {
		report.PierceDamage = res.PierceDamage
		d.offerPierce(res.State, d.human, res.PierceDamage)
		return report, nil
	}
	d.setCombat(CombatIdle)
	return report, nil
}

func (d *Duel) offerPierce(st *game.TurnState, player, damage int) {
	d.mu.Lock()
	d.pierce = &pierceOffer{player: player, defenderPlayer: game.Opponent(player), damage: damage}
	d.combat = CombatPierceOffered
	d.mu.Unlock()
	d.log(log.NewPierceOfferEvent(st.TurnNumber, string(st.Phase), player, damage))
	d.notify()
}

// SelectPierceTarget spends the pending overflow damage on an enemy unit.
// A rejected target leaves the offer open.
func (d *Duel) SelectPierceTarget(ctx context.Context, index int) ([]string, error) {
	if !d.callMu.TryLock() {
		return nil, ErrBusy
	}
	defer d.callMu.Unlock()

	s, st, err := d.ready()
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	offer := d.pierce
	d.mu.Unlock()
	if offer == nil {
		return nil, ErrNoPendingChoice
	}
	target := st.Players[offer.defenderPlayer].Unit(index)
	if target == nil {
		return nil, fmt.Errorf("%w: no unit in slot %d", ErrInvalidTarget, index+1)
	}

	res, err := d.engine.ResolvePierce(ctx, s.ID, offer.player, offer.defenderPlayer, index, offer.damage)
	if err != nil {
		return nil, d.fail(err)
	}

	d.mu.Lock()
	d.pierce = nil
	d.combat = CombatPierceResolved
	d.mu.Unlock()
	d.log(log.NewPierceEvent(st.TurnNumber, string(st.Phase), offer.player, target.Name, offer.damage))
	d.replay(res.State, offer.player, res.Messages)
	d.setCombat(CombatIdle)
	d.apply(s, res.State, res.Messages)
	return res.Messages, nil
}

// SkipPierce declines the pending overflow damage. No engine call is made.
func (d *Duel) SkipPierce() error {
	if !d.callMu.TryLock() {
		return ErrBusy
	}
	defer d.callMu.Unlock()

	_, st, err := d.ready()
	if err != nil {
		return err
	}
	d.mu.Lock()
	offer := d.pierce
	d.pierce = nil
	if offer != nil {
		d.combat = CombatIdle
	}
	d.mu.Unlock()
	if offer == nil {
		return ErrNoPendingChoice
	}
	d.log(log.NewPierceSkipEvent(st.TurnNumber, string(st.Phase), offer.player))
	d.notify()
	return nil
}

// autoPierce spends overflow damage for the autonomous side: the weakest
// enemy unit it would destroy, or nothing.
func (d *Duel) autoPierce(ctx context.Context, s *game.Session, player, damage int) error {
	st := s.Snapshot()
	defender := game.Opponent(player)
	d.log(log.NewPierceOfferEvent(st.TurnNumber, string(st.Phase), player, damage))

	target := -1
	best := 0
	for _, i := range st.Players[defender].OccupiedSlots() {
		def := st.Players[defender].Battlefield[i].DisplayStats().DEF
		if def <= damage && (target < 0 || def < best) {
			target, best = i, def
		}
	}
	if target < 0 {
		d.log(log.NewPierceSkipEvent(st.TurnNumber, string(st.Phase), player))
		return nil
	}

	name := cardName(st.Players[defender].Battlefield[target])
	res, err := d.engine.ResolvePierce(ctx, s.ID, player, defender, target, damage)
	if engine.IsRejected(err) {
		d.fail(err)
		d.log(log.NewPierceSkipEvent(st.TurnNumber, string(st.Phase), player))
		return nil
	}
	if err != nil {
		return err
	}
	d.log(log.NewPierceEvent(st.TurnNumber, string(st.Phase), player, name, damage))
	d.replay(res.State, player, res.Messages)
	d.apply(s, res.State, res.Messages)
	return nil
}

func (d *Duel) setCombat(step CombatStep) {
	d.mu.Lock()
	d.combat = step
	d.mu.Unlock()
}
