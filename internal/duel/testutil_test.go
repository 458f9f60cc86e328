package duel

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/peterkuimelis/sanctum/internal/engine"
	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// engineCall records one call made to the scripted engine.
type engineCall struct {
	Op       string
	Player   int
	Attacker int
	Defender int
	Index    int
	Damage   int
	CardID   string
	Resume   bool
	Target   game.Target
	Trap     engine.TrapRequest
}

type scriptedReply struct {
	v   any
	err error
}

// ScriptedEngine answers each operation from a per-operation queue of
// canned replies. Used in tests to drive the duel deterministically.
type ScriptedEngine struct {
	t       *testing.T
	mu      sync.Mutex
	initial *game.TurnState
	queue   map[string][]scriptedReply
	repeat  map[string]scriptedReply
	calls   []engineCall
}

func NewScriptedEngine(t *testing.T, initial *game.TurnState) *ScriptedEngine {
	return &ScriptedEngine{
		t:       t,
		initial: initial,
		queue:   make(map[string][]scriptedReply),
		repeat:  make(map[string]scriptedReply),
	}
}

// On queues a reply for op.
func (e *ScriptedEngine) On(op string, v any) *ScriptedEngine {
	e.queue[op] = append(e.queue[op], scriptedReply{v: v})
	return e
}

// OnErr queues a failure for op.
func (e *ScriptedEngine) OnErr(op string, err error) *ScriptedEngine {
	e.queue[op] = append(e.queue[op], scriptedReply{err: err})
	return e
}

// Always answers op with v once its queue is empty.
func (e *ScriptedEngine) Always(op string, v any) *ScriptedEngine {
	e.repeat[op] = scriptedReply{v: v}
	return e
}

func (e *ScriptedEngine) next(c engineCall) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
	if q := e.queue[c.Op]; len(q) > 0 {
		e.queue[c.Op] = q[1:]
		return q[0].v, q[0].err
	}
	if r, ok := e.repeat[c.Op]; ok {
		return r.v, r.err
	}
	e.t.Errorf("unexpected engine call %s", c.Op)
	return nil, fmt.Errorf("unexpected engine call %s", c.Op)
}

// Calls returns the recorded calls of one operation.
func (e *ScriptedEngine) Calls(op string) []engineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []engineCall
	for _, c := range e.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Total returns the number of calls made.
func (e *ScriptedEngine) Total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *ScriptedEngine) NewSession(_ context.Context, _, _ string) (string, *game.TurnState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, engineCall{Op: "new_game"})
	return "g1", e.initial, nil
}

func (e *ScriptedEngine) PlayCard(_ context.Context, _ string, player int, cardID string, resume bool) (*engine.PlayResult, error) {
	v, err := e.next(engineCall{Op: "play_card", Player: player, CardID: cardID, Resume: resume})
	if err != nil {
		return nil, err
	}
	return v.(*engine.PlayResult), nil
}

func (e *ScriptedEngine) ResolveTarget(_ context.Context, _ string, player int, cardID string, target game.Target) (*engine.MessageResult, error) {
	v, err := e.next(engineCall{Op: "target_technique", Player: player, CardID: cardID, Target: target})
	if err != nil {
		return nil, err
	}
	return v.(*engine.MessageResult), nil
}

func (e *ScriptedEngine) DeclareAttack(_ context.Context, _ string, player, attacker, defender int, resume bool) (*engine.AttackResult, error) {
	v, err := e.next(engineCall{Op: "attack", Player: player, Attacker: attacker, Defender: defender, Resume: resume})
	if err != nil {
		return nil, err
	}
	return v.(*engine.AttackResult), nil
}

func (e *ScriptedEngine) ResolvePierce(_ context.Context, _ string, player, defenderPlayer, target, damage int) (*engine.MessageResult, error) {
	v, err := e.next(engineCall{Op: "pierce", Player: player, Defender: defenderPlayer, Index: target, Damage: damage})
	if err != nil {
		return nil, err
	}
	return v.(*engine.MessageResult), nil
}

func (e *ScriptedEngine) AdvancePhase(_ context.Context, _ string, player int) (*engine.AdvanceResult, error) {
	v, err := e.next(engineCall{Op: "advance_phase", Player: player})
	if err != nil {
		return nil, err
	}
	return v.(*engine.AdvanceResult), nil
}

func (e *ScriptedEngine) ActivateTrap(_ context.Context, _ string, req engine.TrapRequest) (*engine.TrapResult, error) {
	v, err := e.next(engineCall{Op: "activate_trap", Player: req.Player, Trap: req})
	if err != nil {
		return nil, err
	}
	return v.(*engine.TrapResult), nil
}

func (e *ScriptedEngine) Discard(_ context.Context, _ string, player, cardIndex int) (*engine.AdvanceResult, error) {
	v, err := e.next(engineCall{Op: "discard", Player: player, Index: cardIndex})
	if err != nil {
		return nil, err
	}
	return v.(*engine.AdvanceResult), nil
}

func (e *ScriptedEngine) ForcedDestroy(_ context.Context, _ string, player, unitIndex int) (*engine.AdvanceResult, error) {
	v, err := e.next(engineCall{Op: "rotfall_destroy", Player: player, Index: unitIndex})
	if err != nil {
		return nil, err
	}
	return v.(*engine.AdvanceResult), nil
}

// --- State builders ---

type stateOpt func(*game.TurnState)

// mkState builds a snapshot with the standard test board: P1 has Sentry
// (3/2) in slot 0, P2 has Husk (1/1) in slot 0 and Brute (2/4) in slot 2.
func mkState(turn int, phase game.Phase, active int, opts ...stateOpt) *game.TurnState {
	st := &game.TurnState{TurnNumber: turn, Phase: phase, ActivePlayer: active}
	st.Players[0].Battlefield[0] = mkUnit("sentry", "Sentry", 3, 2)
	st.Players[1].Battlefield[0] = mkUnit("husk", "Husk", 1, 1)
	st.Players[1].Battlefield[2] = mkUnit("brute", "Brute", 2, 4)
	st.Players[0].Hand = []*game.Card{
		{ID: "c-unit", Name: "Ironclad", Type: game.CardTypeUnit, Cost: 2},
		{ID: "c-tech", Name: "Ember Lash", Type: game.CardTypeTechnique, Cost: 1},
	}
	st.Players[0].HandCount = 2
	st.Players[1].HandCount = 3
	for _, o := range opts {
		o(st)
	}
	return st
}

func mkUnit(id, name string, atk, def int) *game.Card {
	s := game.Stats{ATK: atk, DEF: def, SPD: 1}
	return &game.Card{ID: id, Name: name, Type: game.CardTypeUnit, Base: s, Actual: s}
}

func withUnit(player, slot int, c *game.Card) stateOpt {
	return func(st *game.TurnState) { st.Players[player].Battlefield[slot] = c }
}

func withoutUnit(player, slot int) stateOpt {
	return func(st *game.TurnState) { st.Players[player].Battlefield[slot] = nil }
}

func exhausted(player, slot int) stateOpt {
	return func(st *game.TurnState) {
		c := *st.Players[player].Battlefield[slot]
		c.IsExhausted = true
		st.Players[player].Battlefield[slot] = &c
	}
}

func mustDiscard(player, n int) stateOpt {
	return func(st *game.TurnState) { st.Players[player].MustDiscard = n }
}

func mustDestroy(player, n int) stateOpt {
	return func(st *game.TurnState) { st.Players[player].MustDestroyCount = n }
}

func won(player int) stateOpt {
	return func(st *game.TurnState) { st.Winner = &player }
}

func logLines(lines ...string) stateOpt {
	return func(st *game.TurnState) {
		for _, l := range lines {
			st.Log = append(st.Log, game.LogEntry{Turn: st.TurnNumber, Phase: st.Phase, Message: l})
		}
	}
}

func trapTrigger(owner, slot int, kind game.TriggerKind, targets ...game.Target) *game.Trigger {
	return &game.Trigger{
		Owner:          owner,
		Slot:           slot,
		Card:           &game.Card{ID: fmt.Sprintf("trap-%d", slot), Name: fmt.Sprintf("Trap %d", slot+1), Type: game.CardTypeTrap},
		Kind:           kind,
		Message:        "trap window",
		Targets:        targets,
		RequiresTarget: len(targets) > 0,
	}
}

// --- Duel harness ---

type harness struct {
	t      *testing.T
	eng    *ScriptedEngine
	duel   *Duel
	events *log.MemoryLogger
}

func newHarness(t *testing.T, initial *game.TurnState, cfg DuelConfig, decider TrapDecider) *harness {
	t.Helper()
	eng := NewScriptedEngine(t, initial)
	events := log.NewMemoryLogger()
	cfg.Logger = events
	cfg.Diag = zaptest.NewLogger(t)
	if cfg.Policy == nil {
		cfg.Policy = NeverActivate
	}
	d := NewDuel(cfg, eng, decider)
	return &harness{t: t, eng: eng, duel: d, events: events}
}

func (h *harness) start() {
	h.t.Helper()
	_, err := h.duel.Start(context.Background())
	require.NoError(h.t, err)
}

// failDecider fails the test if the human is ever asked.
func failDecider(t *testing.T) TrapDecider {
	return DeciderFunc(func(context.Context, *game.TurnState, *game.Trigger) (TrapDecision, error) {
		t.Errorf("human decider must not be consulted")
		return TrapDecision{}, nil
	})
}

func rejected(op, reason string) error {
	return &engine.RejectedError{Op: op, Reason: reason, Status: 400}
}
