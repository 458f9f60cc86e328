package duel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peterkuimelis/sanctum/internal/engine"
	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// AdvanceReport summarizes a human phase advance.
type AdvanceReport struct {
	Phase        game.Phase
	ActivePlayer int
	Blocked      bool // the engine left the human owing a discard or destroy
	PierceDamage int
	Opponent     SessionRuntimeStatus // after the opponent loop, if it ran
}

// AdvancePhase moves the human's turn forward. It is refused locally while
// the human owes a discard or destroy. When control passes to the opponent
// and AutoOpponent is set, the opponent loop runs before it returns; a loop
// failure is returned alongside the report.
func (d *Duel) AdvancePhase(ctx context.Context) (*AdvanceReport, error) {
	report, err := d.advance(ctx)
	if err != nil {
		return nil, err
	}
	st := d.Snapshot()
	if d.autoOpponent && st.ActivePlayer == d.opponent && !st.Over() {
		status, err := d.RunOpponent(ctx)
		report.Opponent = status
		st = d.Snapshot()
		report.Phase = st.Phase
		report.ActivePlayer = st.ActivePlayer
		report.Blocked = st.Players[d.human].Blocked()
		return report, err
	}
	return report, nil
}

func (d *Duel) advance(ctx context.Context) (*AdvanceReport, error) {
	if !d.callMu.TryLock() {
		return nil, ErrBusy
	}
	defer d.callMu.Unlock()

	s, st, err := d.humanTurn()
	if err != nil {
		return nil, err
	}
	if p := st.Players[d.human]; p.Blocked() {
		d.log(log.NewCleanupRequiredEvent(st.TurnNumber, string(st.Phase), d.human, p.MustDiscard, p.MustDestroyCount))
		return nil, ErrCleanupPending
	}
	d.mu.Lock()
	d.selecting = selectNone
	d.mu.Unlock()

	res, err := d.engine.AdvancePhase(ctx, s.ID, d.human)
	if err != nil {
		return nil, d.fail(err)
	}
	d.replay(res.State, d.human, res.CombatLog)
	d.apply(s, res.State, res.CombatLog)
	if err := d.afterAdvance(ctx, s, res, d.human); err != nil {
		return nil, d.fail(err)
	}

	cur := s.Snapshot()
	report := &AdvanceReport{
		Phase:        cur.Phase,
		ActivePlayer: cur.ActivePlayer,
		Blocked:      cur.Players[d.human].Blocked(),
	}
	if res.PierceAvailable {
		report.PierceDamage = res.PierceDamage
	}
	return report, nil
}

// afterAdvance resolves what an advance response may carry: a trap window
// with no action of ours suspended, and an overflow offer.
func (d *Duel) afterAdvance(ctx context.Context, s *game.Session, res *engine.AdvanceResult, actor int) error {
	if res.Trigger != nil {
		if err := d.resolveStray(ctx, s, res.Trigger); err != nil {
			return err
		}
	}
	if !res.PierceAvailable || s.Snapshot().Over() {
		return nil
	}
	if actor == d.human {
		d.offerPierce(s.Snapshot(), actor, res.PierceDamage)
		return nil
	}
	return d.autoPierce(ctx, s, actor, res.PierceDamage)
}

// RunOpponent drives the autonomous side's turn until control returns to
// the human, the game ends, a fatal error occurs, or the iteration cap is
// hit. Starting it while it runs is a no-op; after a fatal error it refuses
// with ErrSessionFatal until Start opens a new session.
func (d *Duel) RunOpponent(ctx context.Context) (SessionRuntimeStatus, error) {
	d.mu.Lock()
	switch {
	case d.session == nil:
		d.mu.Unlock()
		return SessionRuntimeStatus{}, ErrNoSession
	case d.status.Fatal:
		status := d.status
		d.mu.Unlock()
		return status, ErrSessionFatal
	case d.status.Running:
		status := d.status
		d.mu.Unlock()
		return status, nil
	}
	d.status.Running = true
	s := d.session
	d.mu.Unlock()
	d.notify()

	d.callMu.Lock()
	err := d.opponentLoop(ctx, s)
	d.callMu.Unlock()

	d.mu.Lock()
	d.status.Running = false
	status := d.status
	d.mu.Unlock()
	d.notify()
	return status, err
}

func (d *Duel) opponentLoop(ctx context.Context, s *game.Session) error {
	for i := 0; ; i++ {
		st := s.Snapshot()
		if st.Over() || st.ActivePlayer != d.opponent {
			return nil
		}
		if i >= d.maxIterations {
			d.diag.Error("opponent loop stuck",
				zap.String("session", s.ID),
				zap.String("phase", string(st.Phase)),
				zap.Int("active_player", st.ActivePlayer),
				zap.Int("iterations", i))
			return d.fail(fmt.Errorf("%w: phase %s, active %s, %d iterations",
				ErrIterationCap, st.Phase, game.PlayerName(st.ActivePlayer), i))
		}
		if err := d.pace(ctx); err != nil {
			return err
		}

		err := d.tick(ctx, s, st)
		switch {
		case err == nil:
		case IsFatal(err):
			return err
		case IsRejection(err):
			// already logged; the next tick re-reads the state
		default:
			return err
		}
	}
}

// tick performs one opponent step: settle cleanup obligations if any are
// owed, otherwise advance the phase and resolve what the engine reports.
func (d *Duel) tick(ctx context.Context, s *game.Session, st *game.TurnState) error {
	if st.Players[d.opponent].Blocked() {
		return d.resolveCleanup(ctx, s, d.opponent)
	}
	res, err := d.engine.AdvancePhase(ctx, s.ID, d.opponent)
	if err != nil {
		return d.fail(err)
	}
	d.replay(res.State, d.opponent, res.CombatLog)
	d.apply(s, res.State, res.CombatLog)
	if err := d.afterAdvance(ctx, s, res, d.opponent); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return d.fail(err)
	}
	return nil
}

// pace waits out the cosmetic delay between ticks.
func (d *Duel) pace(ctx context.Context) error {
	if d.pacing <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d.pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
