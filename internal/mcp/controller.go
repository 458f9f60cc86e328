package mcp

import (
	"github.com/peterkuimelis/sanctum/internal/duel"
	"github.com/peterkuimelis/sanctum/internal/log"
	"github.com/peterkuimelis/sanctum/internal/net"
)

// MCPController implements duel.Observer by buffering events for the next
// tool response. Snapshots are read on demand, so StateChanged is ignored.
type MCPController struct {
	session *GameSession
}

// NewMCPController creates an observer feeding the given session.
func NewMCPController(session *GameSession) *MCPController {
	return &MCPController{session: session}
}

// Notify implements duel.Observer.
func (c *MCPController) Notify(event log.GameEvent) {
	c.session.appendEvent(*net.BuildEventView(event))
}

// StateChanged implements duel.Observer.
func (c *MCPController) StateChanged(duel.Interaction) {}
