package duel

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/peterkuimelis/sanctum/internal/game"
)

// TrapDecider obtains the human side's trap decisions. DecideTrap may block
// for as long as the human takes; only ctx bounds it.
type TrapDecider interface {
	DecideTrap(ctx context.Context, state *game.TurnState, trigger *game.Trigger) (TrapDecision, error)
}

// TrapPrompt is one outstanding question to the human.
type TrapPrompt struct {
	ID      string
	Trigger *game.Trigger
	State   *game.TurnState

	once  sync.Once
	reply chan TrapDecision
}

// Respond answers the prompt. Only the first answer counts.
func (p *TrapPrompt) Respond(d TrapDecision) {
	p.once.Do(func() {
		p.reply <- d
	})
}

// PromptDecider hands trap prompts to a presentation adapter over a channel
// and blocks until the adapter responds.
type PromptDecider struct {
	prompts chan *TrapPrompt
}

func NewPromptDecider() *PromptDecider {
	return &PromptDecider{prompts: make(chan *TrapPrompt)}
}

// Prompts delivers prompts as the duel raises them.
func (p *PromptDecider) Prompts() <-chan *TrapPrompt {
	return p.prompts
}

func (p *PromptDecider) DecideTrap(ctx context.Context, state *game.TurnState, trigger *game.Trigger) (TrapDecision, error) {
	pr := &TrapPrompt{
		ID:      uuid.NewString(),
		Trigger: trigger,
		State:   state,
		reply:   make(chan TrapDecision, 1),
	}

	select {
	case p.prompts <- pr:
	case <-ctx.Done():
		return TrapDecision{}, ctx.Err()
	}

	select {
	case d := <-pr.reply:
		return d, nil
	case <-ctx.Done():
		return TrapDecision{}, ctx.Err()
	}
}

// DeciderFunc adapts a function to TrapDecider.
type DeciderFunc func(ctx context.Context, state *game.TurnState, trigger *game.Trigger) (TrapDecision, error)

func (f DeciderFunc) DecideTrap(ctx context.Context, state *game.TurnState, trigger *game.Trigger) (TrapDecision, error) {
	return f(ctx, state, trigger)
}
