package duel

import (
	"fmt"

	"github.com/peterkuimelis/sanctum/internal/game"
)

// InteractionMode is what the orchestrator is waiting on from the human.
// Presentation adapters render from it instead of keeping their own flags.
type InteractionMode int

const (
	ModeIdle InteractionMode = iota
	ModeSelectingAttacker
	ModeSelectingDefender
	ModeSelectingPierceTarget
	ModeSelectingEffectTarget
	ModeAwaitingDiscardChoice
	ModeAwaitingDestroyChoice
	ModeAwaitingTrapDecision
	ModeOpponentTurn
	ModeGameOver
)

func (m InteractionMode) String() string {
	switch m {
	case ModeIdle:
		return "Idle"
	case ModeSelectingAttacker:
		return "SelectingAttacker"
	case ModeSelectingDefender:
		return "SelectingDefender"
	case ModeSelectingPierceTarget:
		return "SelectingPierceTarget"
	case ModeSelectingEffectTarget:
		return "SelectingEffectTarget"
	case ModeAwaitingDiscardChoice:
		return "AwaitingDiscardChoice"
	case ModeAwaitingDestroyChoice:
		return "AwaitingDestroyChoice"
	case ModeAwaitingTrapDecision:
		return "AwaitingTrapDecision"
	case ModeOpponentTurn:
		return "OpponentTurn"
	case ModeGameOver:
		return "GameOver"
	default:
		return "Unknown"
	}
}

// Interaction is the current mode, its legal targets, and the snapshot it
// was computed from.
type Interaction struct {
	Mode         InteractionMode
	Targets      []game.Target
	Prompt       string
	State        *game.TurnState
	Trigger      *game.Trigger // set in ModeAwaitingTrapDecision
	PierceDamage int           // set in ModeSelectingPierceTarget
	Status       SessionRuntimeStatus
}

// Interaction reports what the human may do now.
func (d *Duel) Interaction() Interaction {
	d.mu.Lock()
	defer d.mu.Unlock()

	in := Interaction{Status: d.status}
	if d.session == nil {
		in.Prompt = "No session. Start a new game."
		return in
	}
	st := d.session.Snapshot()
	in.State = st
	me := &st.Players[d.human]
	foe := &st.Players[d.opponent]

	switch {
	case d.status.Fatal:
		in.Mode = ModeGameOver
		in.Prompt = "Session halted. Start a new session."
	case st.Over():
		in.Mode = ModeGameOver
		if *st.Winner == d.human {
			in.Prompt = "You win!"
		} else {
			in.Prompt = "You lose."
		}
	case d.awaiting != nil:
		in.Mode = ModeAwaitingTrapDecision
		in.Trigger = d.awaiting
		in.Targets = d.awaiting.Targets
		in.Prompt = fmt.Sprintf("Activate %s? %s", d.awaiting.CardName(), d.awaiting.Message)
	case d.pierce != nil:
		in.Mode = ModeSelectingPierceTarget
		in.PierceDamage = d.pierce.damage
		in.Targets = unitTargets(&st.Players[d.pierce.defenderPlayer], d.pierce.defenderPlayer)
		in.Prompt = fmt.Sprintf("Pierce for %d: choose a target or skip", d.pierce.damage)
	case d.effect != nil:
		in.Mode = ModeSelectingEffectTarget
		in.Targets = d.effect.targets
		in.Prompt = fmt.Sprintf("Choose a target for %s", d.effect.cardName)
	case me.MustDestroyCount > 0:
		in.Mode = ModeAwaitingDestroyChoice
		in.Targets = unitTargets(me, d.human)
		in.Prompt = fmt.Sprintf("Destroy %d unit(s)", me.MustDestroyCount)
	case me.MustDiscard > 0:
		in.Mode = ModeAwaitingDiscardChoice
		for i := range me.Hand {
			in.Targets = append(in.Targets, game.Target{Player: d.human, Index: i})
		}
		in.Prompt = fmt.Sprintf("Discard %d card(s)", me.MustDiscard)
	case d.status.Running || st.ActivePlayer != d.human:
		in.Mode = ModeOpponentTurn
		in.Prompt = "Opponent's turn"
	case d.selecting == selectAttacker:
		in.Mode = ModeSelectingAttacker
		in.Targets = readyAttackers(me, d.human)
		in.Prompt = "Choose an attacker"
	case d.selecting == selectDefender:
		in.Mode = ModeSelectingDefender
		in.Targets = unitTargets(foe, d.opponent)
		in.Prompt = fmt.Sprintf("Choose a defender for %s", cardName(me.Unit(d.selAttacker)))
	default:
		in.Mode = ModeIdle
		in.Prompt = fmt.Sprintf("%s: your move", st.Phase)
	}
	return in
}

// BeginAttack enters attacker selection.
func (d *Duel) BeginAttack() error {
	_, st, err := d.humanTurn()
	if err != nil {
		return err
	}
	if st.Phase != game.PhaseCombat {
		return fmt.Errorf("%w: attacks need the combat phase", ErrWrongPhase)
	}
	if len(readyAttackers(&st.Players[d.human], d.human)) == 0 {
		return fmt.Errorf("%w: no unit can attack", ErrInvalidTarget)
	}
	d.mu.Lock()
	d.selecting = selectAttacker
	d.mu.Unlock()
	d.notify()
	return nil
}

// SelectAttacker picks the attacking unit and moves on to defender selection.
func (d *Duel) SelectAttacker(index int) error {
	_, st, err := d.humanTurn()
	if err != nil {
		return err
	}
	d.mu.Lock()
	if d.selecting != selectAttacker {
		d.mu.Unlock()
		return ErrNoPendingChoice
	}
	u := st.Players[d.human].Unit(index)
	if u == nil || u.IsExhausted {
		d.mu.Unlock()
		return fmt.Errorf("%w: slot %d cannot attack", ErrInvalidTarget, index+1)
	}
	d.selecting = selectDefender
	d.selAttacker = index
	d.mu.Unlock()
	d.notify()
	return nil
}

// SelectedAttacker returns the attacker chosen during selection, or -1.
func (d *Duel) SelectedAttacker() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selecting != selectDefender {
		return -1
	}
	return d.selAttacker
}

// CancelAttack leaves attacker or defender selection.
func (d *Duel) CancelAttack() {
	d.mu.Lock()
	d.selecting = selectNone
	d.mu.Unlock()
	d.notify()
}

func unitTargets(p *game.PlayerState, player int) []game.Target {
	var out []game.Target
	for _, i := range p.OccupiedSlots() {
		out = append(out, game.Target{Player: player, Index: i})
	}
	return out
}

func readyAttackers(p *game.PlayerState, player int) []game.Target {
	var out []game.Target
	for _, i := range p.OccupiedSlots() {
		if !p.Battlefield[i].IsExhausted {
			out = append(out, game.Target{Player: player, Index: i})
		}
	}
	return out
}
