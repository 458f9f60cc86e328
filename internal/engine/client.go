package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peterkuimelis/sanctum/internal/game"
)

const (
	opNewGame       = "new_game"
	opPlayCard      = "play_card"
	opTarget        = "target_technique"
	opAttack        = "attack"
	opPierce        = "pierce"
	opAdvance       = "advance_phase"
	opActivateTrap  = "activate_trap"
	opDiscard       = "discard"
	opRotfall       = "rotfall_destroy"
	opState         = "state"
	opCards         = "cards"
	maxResponseSize = 4 << 20
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL     string        // e.g. http://localhost:5000
	Timeout     time.Duration // per request; 0 means no timeout
	Perspective int           // seat whose view the engine should render
	HTTPClient  *http.Client  // optional
	Logger      *zap.Logger   // optional
}

// Client talks to the remote engine. Every method is exactly one round trip;
// there are no retries and nothing is cached.
type Client struct {
	baseURL     string
	http        *http.Client
	perspective int
	logger      *zap.Logger
}

// NewClient creates an engine client.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        hc,
		perspective: cfg.Perspective,
		logger:      logger,
	}
}

// Perspective returns the seat whose view every returned state is built from.
func (c *Client) Perspective() int {
	return c.perspective
}

// --- Results ---

// PendingAttack is the engine's echo of a suspended attack.
type PendingAttack struct {
	AttackerPlayer int
	AttackerIndex  int
	DefenderIndex  int
}

// AttackResult is the outcome of declaring an attack. Exactly one of
// Trigger or the combat fields is meaningful.
type AttackResult struct {
	State             *game.TurnState
	CombatLog         []string
	AttackerDestroyed bool
	DefenderDestroyed bool
	PierceAvailable   bool
	PierceDamage      int
	Trigger           *game.Trigger
	Pending           *PendingAttack
}

// PlayResult is the outcome of playing a card from hand.
type PlayResult struct {
	State       *game.TurnState
	Message     string
	NeedsTarget bool
	TargetKind  game.TargetKind
	Trigger     *game.Trigger
}

// MessageResult carries a state and the engine's message lines.
type MessageResult struct {
	State    *game.TurnState
	Messages []string
}

// AdvanceResult is the outcome of advance_phase, discard or forced destroy.
type AdvanceResult struct {
	State           *game.TurnState
	CombatLog       []string
	Trigger         *game.Trigger
	PierceAvailable bool
	PierceDamage    int
	AttackerIndex   int
}

// TrapRequest answers a trap window.
type TrapRequest struct {
	Player      int
	Slot        int
	Activate    bool
	Target      *game.Target
	TriggerData json.RawMessage
}

// TrapResult is the engine's answer to a trap decision.
type TrapResult struct {
	State     *game.TurnState
	Message   string
	Activated bool
	Effects   []string
	Cancel    bool         // suspended action is void
	Redirect  *game.Target // suspended action continues against a new target
	Negated   bool         // a counter cancelled the trap this answers
	Counter   *game.Trigger
}

// --- Operations ---

// NewSession starts a game and returns its id and initial state.
func (c *Client) NewSession(ctx context.Context, playerFaction, opponentFaction string) (string, *game.TurnState, error) {
	var resp newGameResponse
	body := newGameRequest{Faction1: playerFaction, Faction2: opponentFaction}
	if err := c.do(ctx, opNewGame, http.MethodPost, "/api/new_game", body, &resp); err != nil {
		return "", nil, err
	}
	if resp.GameID == "" {
		resp.GameID = resp.State.gameID()
	}
	if resp.GameID == "" {
		return "", nil, protocolf(opNewGame, "response has no game_id")
	}
	st, err := resp.State.toState(opNewGame, c.perspective)
	if err != nil {
		return "", nil, err
	}
	return resp.GameID, st, nil
}

// PlayCard plays a card from the player's hand. Resume marks a resubmission
// after a trap window closed.
func (c *Client) PlayCard(ctx context.Context, sessionID string, player int, cardID string, resume bool) (*PlayResult, error) {
	var resp resultEnvelope[playResultView]
	body := playRequest{actorRequest: c.actor(player), CardID: cardID, Resume: resume}
	if err := c.do(ctx, opPlayCard, http.MethodPost, c.gamePath(sessionID, opPlayCard), body, &resp); err != nil {
		return nil, err
	}
	r := resp.Result
	if r == nil {
		r = &playResultView{}
	}
	if r.Error != "" {
		return nil, refusal(opPlayCard, r.Error, http.StatusOK)
	}
	st, err := resp.State.toState(opPlayCard, c.perspective)
	if err != nil {
		return nil, err
	}
	res := &PlayResult{State: st, Message: r.Message}
	if r.triggerView.present() {
		if res.Trigger, err = r.triggerView.toTrigger(opPlayCard, game.Opponent(player), kindForPlay(st, player, cardID)); err != nil {
			return nil, err
		}
		return res, nil
	}
	if r.NeedsTarget {
		res.NeedsTarget = true
		res.TargetKind = game.TargetKind(r.TargetType)
		if res.TargetKind == "" {
			res.TargetKind = game.TargetAnyUnit
		}
	}
	return res, nil
}

// ResolveTarget completes a technique that asked for a target.
func (c *Client) ResolveTarget(ctx context.Context, sessionID string, player int, cardID string, target game.Target) (*MessageResult, error) {
	body := targetRequest{actorRequest: c.actor(player), CardID: cardID, TargetPlayer: target.Player, TargetIndex: target.Index}
	return c.messageCall(ctx, opTarget, sessionID, body)
}

// DeclareAttack attacks the defender slot with the attacker slot.
func (c *Client) DeclareAttack(ctx context.Context, sessionID string, player, attacker, defender int, resume bool) (*AttackResult, error) {
	var resp resultEnvelope[attackResultView]
	body := attackRequest{actorRequest: c.actor(player), AttackerIndex: attacker, DefenderIndex: defender, Resume: resume}
	if err := c.do(ctx, opAttack, http.MethodPost, c.gamePath(sessionID, opAttack), body, &resp); err != nil {
		return nil, err
	}
	r := resp.Result
	if r == nil {
		return nil, protocolf(opAttack, "response has no result")
	}
	if r.Error != "" {
		return nil, refusal(opAttack, r.Error, http.StatusOK)
	}
	st, err := resp.State.toState(opAttack, c.perspective)
	if err != nil {
		return nil, err
	}
	res := &AttackResult{
		State:             st,
		CombatLog:         r.CombatLog,
		AttackerDestroyed: r.AttackerDestroyed,
		DefenderDestroyed: r.DefenderDestroyed,
		PierceAvailable:   r.PierceAvailable && r.PierceDamage > 0,
		PierceDamage:      r.PierceDamage,
	}
	if r.triggerView.present() {
		if res.Trigger, err = r.triggerView.toTrigger(opAttack, game.Opponent(player), game.TriggerAttack); err != nil {
			return nil, err
		}
		if p := r.PendingAttack; p != nil {
			res.Pending = &PendingAttack{AttackerPlayer: p.AttackerPlayer, AttackerIndex: p.AttackerIndex, DefenderIndex: p.DefenderIndex}
		}
	}
	return res, nil
}

// ResolvePierce applies overflow damage to a unit of defenderPlayer.
func (c *Client) ResolvePierce(ctx context.Context, sessionID string, player, defenderPlayer, target, damage int) (*MessageResult, error) {
	body := pierceRequest{actorRequest: c.actor(player), DefenderPlayer: defenderPlayer, PierceTargetIndex: target, PierceDamage: damage}
	return c.messageCall(ctx, opPierce, sessionID, body)
}

// AdvancePhase asks the engine to move the player's turn forward.
func (c *Client) AdvancePhase(ctx context.Context, sessionID string, player int) (*AdvanceResult, error) {
	return c.advanceCall(ctx, opAdvance, sessionID, player, c.actor(player))
}

// Discard discards one card from hand to satisfy the hand limit.
func (c *Client) Discard(ctx context.Context, sessionID string, player, cardIndex int) (*AdvanceResult, error) {
	return c.advanceCall(ctx, opDiscard, sessionID, player, discardRequest{actorRequest: c.actor(player), CardIndex: cardIndex})
}

// ForcedDestroy destroys one unit to satisfy the board-size cap.
func (c *Client) ForcedDestroy(ctx context.Context, sessionID string, player, unitIndex int) (*AdvanceResult, error) {
	return c.advanceCall(ctx, opRotfall, sessionID, player, destroyRequest{actorRequest: c.actor(player), UnitIndex: unitIndex})
}

// ActivateTrap answers a trap window. A stale window yields ErrStale.
func (c *Client) ActivateTrap(ctx context.Context, sessionID string, req TrapRequest) (*TrapResult, error) {
	body := trapRequest{
		actorRequest: c.actor(req.Player),
		TrapSlot:     req.Slot,
		Activate:     req.Activate,
		TriggerData:  req.TriggerData,
	}
	if req.Target != nil {
		body.TargetPlayer = &req.Target.Player
		body.TargetIndex = &req.Target.Index
	}
	var r trapResultView
	if err := c.do(ctx, opActivateTrap, http.MethodPost, c.gamePath(sessionID, opActivateTrap), body, &r); err != nil {
		return nil, err
	}
	if r.AlreadyResolved {
		return nil, fmt.Errorf("%s: %w", opActivateTrap, ErrStale)
	}
	st, err := r.State.toState(opActivateTrap, c.perspective)
	if err != nil {
		return nil, err
	}
	res := &TrapResult{
		State:     st,
		Message:   r.Message,
		Activated: r.TrapActivated,
		Effects:   r.EffectResult,
		Cancel:    r.CancelAction,
		Negated:   r.Negated,
	}
	if rd := r.Redirect; rd != nil {
		tg := game.Target{Player: req.Player, Index: -1}
		if rd.TargetPlayer != nil {
			tg.Player = *rd.TargetPlayer
		}
		switch {
		case rd.DefenderIndex != nil:
			tg.Index = *rd.DefenderIndex
		case rd.TargetIndex != nil:
			tg.Index = *rd.TargetIndex
		}
		if tg.Index < 0 || tg.Index >= game.BattlefieldSize {
			return nil, protocolf(opActivateTrap, "redirect without a valid index")
		}
		res.Redirect = &tg
	}
	if ct := r.CounterSigilTrigger; ct != nil && (ct.present() || ct.TrapSlot != nil) {
		if res.Counter, err = ct.toTrigger(opActivateTrap, game.Opponent(req.Player), game.TriggerCounter); err != nil {
			return nil, err
		}
		res.Counter.Kind = game.TriggerCounter
	}
	return res, nil
}

// State fetches the current state without changing it.
func (c *Client) State(ctx context.Context, sessionID string) (*game.TurnState, error) {
	var v stateView
	path := c.gamePath(sessionID, opState) + "?player=" + strconv.Itoa(c.perspective)
	if err := c.do(ctx, opState, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return v.toState(opState, c.perspective)
}

// Cards returns the engine's card catalog.
func (c *Client) Cards(ctx context.Context) ([]*game.Card, error) {
	var resp cardsResponse
	if err := c.do(ctx, opCards, http.MethodGet, "/api/cards", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]*game.Card, 0, len(resp.Cards))
	for _, cv := range resp.Cards {
		if cv != nil {
			out = append(out, cv.toCard())
		}
	}
	return out, nil
}

// --- Plumbing ---

func (c *Client) actor(player int) actorRequest {
	return actorRequest{Player: player, Perspective: c.perspective}
}

func (c *Client) gamePath(sessionID, op string) string {
	return "/api/game/" + url.PathEscape(sessionID) + "/" + op
}

func (c *Client) messageCall(ctx context.Context, op, sessionID string, body any) (*MessageResult, error) {
	var resp resultEnvelope[messageResultView]
	if err := c.do(ctx, op, http.MethodPost, c.gamePath(sessionID, op), body, &resp); err != nil {
		return nil, err
	}
	res := &MessageResult{}
	if r := resp.Result; r != nil {
		if r.Error != "" {
			return nil, refusal(op, r.Error, http.StatusOK)
		}
		if r.Message != "" {
			res.Messages = append(res.Messages, r.Message)
		}
		res.Messages = append(res.Messages, r.PierceLog...)
	}
	st, err := resp.State.toState(op, c.perspective)
	if err != nil {
		return nil, err
	}
	res.State = st
	return res, nil
}

func (c *Client) advanceCall(ctx context.Context, op, sessionID string, player int, body any) (*AdvanceResult, error) {
	var v advanceView
	if err := c.do(ctx, op, http.MethodPost, c.gamePath(sessionID, op), body, &v); err != nil {
		return nil, err
	}
	st, err := v.state().toState(op, c.perspective)
	if err != nil {
		return nil, err
	}
	res := &AdvanceResult{
		State:           st,
		CombatLog:       v.CombatLog,
		PierceAvailable: v.PierceAvailable && v.PierceDamage > 0,
		PierceDamage:    v.PierceDamage,
		AttackerIndex:   -1,
	}
	if v.AttackerIndex != nil {
		res.AttackerIndex = *v.AttackerIndex
	}
	if v.triggerView.present() {
		if res.Trigger, err = v.triggerView.toTrigger(op, player, game.TriggerReadiness); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// do performs one request and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("engine call failed",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	c.logger.Debug("engine call",
		zap.String("op", op),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var ev errorView
	decodedErr := json.Unmarshal(raw, &ev) == nil && ev.Error != ""
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodedErr {
			return refusal(op, ev.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: engine returned %s", op, resp.Status)
	}
	if decodedErr {
		return refusal(op, ev.Error, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return protocolf(op, "undecodable response: %v", err)
	}
	return nil
}

func (v *stateView) gameID() string {
	if v == nil {
		return ""
	}
	return v.GameID
}

// kindForPlay picks the trigger kind from the type of the card being played.
func kindForPlay(s *game.TurnState, player int, cardID string) game.TriggerKind {
	for _, c := range s.Players[player].Hand {
		if c != nil && c.ID == cardID {
			switch c.Type {
			case game.CardTypeTechnique:
				return game.TriggerTechnique
			case game.CardTypeField:
				return game.TriggerField
			}
		}
	}
	return game.TriggerDeployment
}
