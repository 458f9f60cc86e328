package duel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peterkuimelis/sanctum/internal/engine"
	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// Engine is the remote rules authority, one method per capability.
type Engine interface {
	NewSession(ctx context.Context, playerFaction, opponentFaction string) (string, *game.TurnState, error)
	PlayCard(ctx context.Context, sessionID string, player int, cardID string, resume bool) (*engine.PlayResult, error)
	ResolveTarget(ctx context.Context, sessionID string, player int, cardID string, target game.Target) (*engine.MessageResult, error)
	DeclareAttack(ctx context.Context, sessionID string, player, attacker, defender int, resume bool) (*engine.AttackResult, error)
	ResolvePierce(ctx context.Context, sessionID string, player, defenderPlayer, target, damage int) (*engine.MessageResult, error)
	AdvancePhase(ctx context.Context, sessionID string, player int) (*engine.AdvanceResult, error)
	ActivateTrap(ctx context.Context, sessionID string, req engine.TrapRequest) (*engine.TrapResult, error)
	Discard(ctx context.Context, sessionID string, player, cardIndex int) (*engine.AdvanceResult, error)
	ForcedDestroy(ctx context.Context, sessionID string, player, unitIndex int) (*engine.AdvanceResult, error)
}

// Observer is told about every logged event and every published snapshot.
// Calls are synchronous, so implementations must not block.
type Observer interface {
	Notify(event log.GameEvent)
	StateChanged(in Interaction)
}

// DuelConfig holds configuration for a duel.
type DuelConfig struct {
	Human           int // seat driven by the presentation adapter
	PlayerFaction   string
	OpponentFaction string
	Pacing          time.Duration // delay between opponent loop ticks
	MaxIterations   int           // opponent loop cap (0 = 20)
	AutoOpponent    bool          // run the opponent loop whenever control passes to it
	Policy          Policy        // autonomous trap policy (nil = 80% random)
	Logger          log.EventLogger
	Diag            *zap.Logger
	Observers       []Observer
}

// SessionRuntimeStatus is the opponent loop's per-session state.
type SessionRuntimeStatus struct {
	Running bool
	Fatal   bool
}

// CombatStep tracks one attack through its extensions.
type CombatStep int

const (
	CombatIdle CombatStep = iota
	CombatAttackDeclared
	CombatInterruptPending
	CombatBaseDamageResolved
	CombatPierceOffered
	CombatPierceResolved
)

func (s CombatStep) String() string {
	switch s {
	case CombatAttackDeclared:
		return "AttackDeclared"
	case CombatInterruptPending:
		return "InterruptPending"
	case CombatBaseDamageResolved:
		return "BaseDamageResolved"
	case CombatPierceOffered:
		return "PierceOffered"
	case CombatPierceResolved:
		return "PierceResolved"
	default:
		return "Idle"
	}
}

// ActionKind names the kind of action a trap can suspend.
type ActionKind int

const (
	ActionAttack ActionKind = iota
	ActionPlayCard
)

func (k ActionKind) String() string {
	if k == ActionPlayCard {
		return "play"
	}
	return "attack"
}

// PendingAction is an attack or play suspended by a trap window. It is
// consumed exactly once, by resubmission or cancellation.
type PendingAction struct {
	Kind     ActionKind
	Player   int
	Attacker int
	Defender int
	CardID   string
	CardName string
}

type pierceOffer struct {
	player         int
	defenderPlayer int
	damage         int
}

type effectRequest struct {
	cardID   string
	cardName string
	kind     game.TargetKind
	targets  []game.Target
}

type selection int

const (
	selectNone selection = iota
	selectAttacker
	selectDefender
)

// Duel orchestrates one session against the engine for one human seat.
type Duel struct {
	engine        Engine
	decider       TrapDecider
	policy        Policy
	logger        log.EventLogger
	diag          *zap.Logger
	observers     []Observer
	human         int
	opponent      int
	factions      [2]string
	pacing        time.Duration
	maxIterations int
	autoOpponent  bool

	// callMu serializes exchanges with the engine.
	callMu sync.Mutex

	// mu guards everything below.
	mu          sync.Mutex
	session     *game.Session
	status      SessionRuntimeStatus
	combat      CombatStep
	pending     *PendingAction
	pierce      *pierceOffer
	effect      *effectRequest
	awaiting    *game.Trigger
	selecting   selection
	selAttacker int
}

// NewDuel creates a duel. The decider answers the human's trap windows;
// when it is nil those windows are declined.
func NewDuel(cfg DuelConfig, eng Engine, decider TrapDecider) *Duel {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewMemoryLogger()
	}
	diag := cfg.Diag
	if diag == nil {
		diag = zap.NewNop()
	}
	policy := cfg.Policy
	if policy == nil {
		policy = NewRandomPolicy(0, DefaultActivation)
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 20
	}
	human := cfg.Human
	if human != 1 {
		human = 0
	}

	return &Duel{
		engine:        eng,
		decider:       decider,
		policy:        policy,
		logger:        logger,
		diag:          diag,
		observers:     cfg.Observers,
		human:         human,
		opponent:      game.Opponent(human),
		factions:      [2]string{cfg.PlayerFaction, cfg.OpponentFaction},
		pacing:        cfg.Pacing,
		maxIterations: maxIter,
		autoOpponent:  cfg.AutoOpponent,
	}
}

// Human returns the human seat.
func (d *Duel) Human() int { return d.human }

// Logger returns the event logger.
func (d *Duel) Logger() log.EventLogger { return d.logger }

// SessionID returns the engine session id, or "" before Start.
func (d *Duel) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return ""
	}
	return d.session.ID
}

// Snapshot returns the latest published state, or nil before Start.
func (d *Duel) Snapshot() *game.TurnState {
	d.mu.Lock()
	s := d.session
	d.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Snapshot()
}

// Status returns the opponent loop status for the current session.
func (d *Duel) Status() SessionRuntimeStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// CombatStep returns where the current attack stands.
func (d *Duel) CombatStep() CombatStep {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.combat
}

// Pending returns a copy of the suspended action, if any.
func (d *Duel) Pending() *PendingAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	pa := *d.pending
	return &pa
}

// Start opens a new engine session, clearing any fatal flag from the
// previous one. When the opponent moves first and AutoOpponent is set, the
// opponent loop runs before Start returns.
func (d *Duel) Start(ctx context.Context) (*game.TurnState, error) {
	st, err := d.start(ctx)
	if err != nil {
		return nil, err
	}
	if d.autoOpponent && st.ActivePlayer == d.opponent && !st.Over() {
		if _, err := d.RunOpponent(ctx); err != nil {
			return d.Snapshot(), err
		}
	}
	return d.Snapshot(), nil
}

func (d *Duel) start(ctx context.Context) (*game.TurnState, error) {
	if !d.callMu.TryLock() {
		return nil, ErrBusy
	}
	defer d.callMu.Unlock()

	id, st, err := d.engine.NewSession(ctx, d.factions[d.human], d.factions[d.opponent])
	if err != nil {
		d.diag.Warn("new session failed", zap.Error(err))
		return nil, fmt.Errorf("start session: %w", err)
	}

	d.mu.Lock()
	d.session = game.NewSession(id, st)
	d.status = SessionRuntimeStatus{}
	d.combat = CombatIdle
	d.pending = nil
	d.pierce = nil
	d.effect = nil
	d.awaiting = nil
	d.selecting = selectNone
	d.mu.Unlock()

	d.diag.Info("session started",
		zap.String("session", id),
		zap.String("player_faction", d.factions[d.human]),
		zap.String("opponent_faction", d.factions[d.opponent]))
	d.log(log.NewSessionStartEvent(id, d.factions[d.human], d.factions[d.opponent]))
	for _, e := range st.Log {
		d.log(log.NewEngineEvent(e.Turn, string(e.Phase), e.Message))
	}
	d.notify()
	return st, nil
}

// ready returns the live session and snapshot, refusing when none can act.
func (d *Duel) ready() (*game.Session, *game.TurnState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, nil, ErrNoSession
	}
	if d.status.Fatal {
		return nil, nil, ErrSessionFatal
	}
	st := d.session.Snapshot()
	if st.Over() {
		return nil, nil, ErrGameOver
	}
	return d.session, st, nil
}

// humanTurn is ready plus the checks every human intent shares.
func (d *Duel) humanTurn() (*game.Session, *game.TurnState, error) {
	s, st, err := d.ready()
	if err != nil {
		return nil, nil, err
	}
	if st.ActivePlayer != d.human {
		return nil, nil, ErrNotYourTurn
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pierce != nil || d.effect != nil || d.awaiting != nil {
		return nil, nil, ErrChoicePending
	}
	return s, st, nil
}

// apply publishes a new snapshot and logs what changed. Lines in replayed
// were already logged from a combat log and are not repeated.
func (d *Duel) apply(s *game.Session, next *game.TurnState, replayed []string) {
	prev, err := s.Replace(next)
	if err != nil {
		return
	}

	seen := make(map[string]bool, len(replayed))
	for _, l := range replayed {
		seen[l] = true
	}
	for _, e := range game.NewEntries(prev.Log, next.Log) {
		if seen[e.Message] {
			continue
		}
		d.log(log.NewEngineEvent(e.Turn, string(e.Phase), e.Message))
	}

	phase := string(next.Phase)
	switch {
	case prev.TurnNumber != next.TurnNumber || prev.ActivePlayer != next.ActivePlayer:
		d.log(log.NewTurnEvent(next.TurnNumber, phase, next.ActivePlayer))
	case prev.Phase != next.Phase:
		d.log(log.NewPhaseChangeEvent(next.TurnNumber, phase))
	}

	h := next.Players[d.human]
	ph := prev.Players[d.human]
	if h.Blocked() && !ph.Blocked() {
		d.log(log.NewCleanupRequiredEvent(next.TurnNumber, phase, d.human, h.MustDiscard, h.MustDestroyCount))
	}

	if next.Over() && !prev.Over() {
		d.mu.Lock()
		d.pierce = nil
		d.effect = nil
		d.selecting = selectNone
		d.combat = CombatIdle
		d.mu.Unlock()
		d.log(log.NewWinEvent(next.TurnNumber, phase, *next.Winner))
		d.diag.Info("game over", zap.String("session", s.ID), zap.Int("winner", *next.Winner))
	}
	d.notify()
}

// replay logs engine combat lines as they are, without re-simulating them.
func (d *Duel) replay(st *game.TurnState, player int, lines []string) {
	for _, l := range lines {
		d.log(log.NewCombatEvent(st.TurnNumber, string(st.Phase), player, l))
	}
}

// fail classifies an exchange error: fatal errors halt the session,
// rejections are logged inline, anything else is logged for diagnostics.
func (d *Duel) fail(err error) error {
	if err == nil {
		return nil
	}
	d.mu.Lock()
	s := d.session
	d.mu.Unlock()
	var st *game.TurnState
	if s != nil {
		st = s.Snapshot()
	}
	turn, phase, active, id := 0, "", -1, ""
	if st != nil {
		turn, phase, active, id = st.TurnNumber, string(st.Phase), st.ActivePlayer, s.ID
	}

	switch {
	case IsFatal(err):
		d.mu.Lock()
		d.status.Fatal = true
		d.pending = nil
		d.pierce = nil
		d.effect = nil
		d.awaiting = nil
		d.selecting = selectNone
		d.combat = CombatIdle
		d.mu.Unlock()
		d.diag.Error("session halted",
			zap.String("session", id),
			zap.String("phase", phase),
			zap.Int("active_player", active),
			zap.Error(err))
		d.log(log.NewFatalEvent(turn, phase, err.Error()))
		d.notify()
	case IsRejection(err):
		d.log(log.NewRejectedEvent(turn, phase, d.human, err.Error()))
	default:
		d.diag.Warn("exchange failed",
			zap.String("session", id),
			zap.String("phase", phase),
			zap.Error(err))
	}
	return err
}

func (d *Duel) log(event log.GameEvent) {
	d.logger.Log(event)
	for _, o := range d.observers {
		o.Notify(event)
	}
}

func (d *Duel) notify() {
	if len(d.observers) == 0 {
		return
	}
	in := d.Interaction()
	for _, o := range d.observers {
		o.StateChanged(in)
	}
}

func cardName(c *game.Card) string {
	if c == nil {
		return "(empty)"
	}
	return c.Name
}
