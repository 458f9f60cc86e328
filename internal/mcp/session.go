package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/peterkuimelis/sanctum/internal/duel"
	"github.com/peterkuimelis/sanctum/internal/net"
)

var (
	errOperationPending = errors.New("an operation is waiting on a trap decision; answer it with decide_trap")
	errNoPrompt         = errors.New("no trap decision is pending")
)

// ToolResponse is the JSON envelope returned by all MCP tools.
type ToolResponse struct {
	Events      []net.EventView      `json:"events"`
	State       *net.StateView       `json:"state,omitempty"`
	Interaction *net.InteractionView `json:"interaction,omitempty"`
	Trap        *net.TrapPromptView  `json:"trap,omitempty"`
	GameOver    bool                 `json:"game_over"`
	Winner      int                  `json:"winner,omitempty"` // 0 = you
	Result      string               `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
	Rejection   bool                 `json:"rejection,omitempty"`
	Fatal       bool                 `json:"fatal,omitempty"`
}

// GameSession holds the duel the MCP client plays as the human seat.
// Operations run on their own goroutine so a tool call can return while the
// operation waits on a trap decision.
type GameSession struct {
	duel  *duel.Duel
	pd    *duel.PromptDecider
	human int

	ctx    context.Context // outlives individual tool calls
	cancel context.CancelFunc

	// touched only under the Tools call lock
	inflight chan error
	prompt   *duel.TrapPrompt

	mu     sync.Mutex
	events []net.EventView
}

// NewGameSession creates a session. Nothing is sent to the engine until the
// first operation.
func NewGameSession(cfg duel.DuelConfig, eng duel.Engine) *GameSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GameSession{
		pd:     duel.NewPromptDecider(),
		ctx:    ctx,
		cancel: cancel,
	}
	cfg.Observers = append(slices.Clone(cfg.Observers), NewMCPController(s))
	s.duel = duel.NewDuel(cfg, eng, s.pd)
	s.human = s.duel.Human()
	return s
}

// Close abandons any in-flight operation.
func (s *GameSession) Close() {
	s.cancel()
}

// run starts op and waits until it finishes or raises a trap prompt.
func (s *GameSession) run(ctx context.Context, op func(ctx context.Context) error) (*ToolResponse, error) {
	if s.inflight != nil {
		return nil, errOperationPending
	}
	done := make(chan error, 1)
	s.inflight = done
	go func() {
		done <- op(s.ctx)
	}()
	return s.wait(ctx)
}

// decide answers the outstanding prompt and waits for the operation to move
// on. If the prompt has not been collected yet it only waits for it.
func (s *GameSession) decide(ctx context.Context, dec duel.TrapDecision) (*ToolResponse, error) {
	if s.prompt == nil {
		if s.inflight == nil {
			return nil, errNoPrompt
		}
		return s.wait(ctx)
	}
	s.prompt.Respond(dec)
	s.prompt = nil
	return s.wait(ctx)
}

func (s *GameSession) wait(ctx context.Context) (*ToolResponse, error) {
	select {
	case err := <-s.inflight:
		s.inflight = nil
		return s.response(err), nil
	case pr := <-s.pd.Prompts():
		s.prompt = pr
		return s.response(nil), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// response builds a ToolResponse from the latest snapshot.
func (s *GameSession) response(err error) *ToolResponse {
	resp := &ToolResponse{Events: s.drainEvents()}
	in := s.duel.Interaction()
	resp.State = net.BuildStateView(in.State, s.human)
	resp.Interaction = net.BuildInteractionView(in, s.human)
	resp.Fatal = in.Status.Fatal
	if s.prompt != nil {
		resp.Trap = net.BuildTrapPromptView(s.prompt, s.human)
	}
	if resp.State != nil && resp.State.Winner != nil {
		resp.GameOver = true
		resp.Winner = *resp.State.Winner
		resp.Result = in.Prompt
	}
	if err != nil {
		resp.Error = err.Error()
		resp.Rejection = duel.IsRejection(err)
	}
	return resp
}

// appendEvent adds an event to the session's event log. Thread-safe.
func (s *GameSession) appendEvent(ev net.EventView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// drainEvents returns all accumulated events and clears the buffer.
func (s *GameSession) drainEvents() []net.EventView {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	if events == nil {
		// never null in JSON
		events = []net.EventView{}
	}
	return events
}

// respondJSON marshals a ToolResponse to a JSON string.
func respondJSON(resp *ToolResponse) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal error: %v"}`, err)
	}
	return string(data)
}
