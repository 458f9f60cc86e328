package net

import (
	"encoding/json"
	"net"
	"sync"

	"github.com/peterkuimelis/sanctum/internal/duel"
	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// NetworkController streams one duel's events, snapshots and prompts to a
// client connection. It implements duel.Observer. Writes go through a queue
// so the duel never waits on a slow reader.
type NetworkController struct {
	conn   net.Conn
	enc    *json.Encoder
	player int // the human seat this connection drives
	out    chan ServerMessage
	done   chan struct{}

	mu     sync.Mutex
	closed bool

	errMu sync.Mutex
	err   error
}

// NewNetworkController creates a new controller for the given connection and
// starts its writer.
func NewNetworkController(conn net.Conn, player int) *NetworkController {
	nc := &NetworkController{
		conn:   conn,
		enc:    json.NewEncoder(conn),
		player: player,
		out:    make(chan ServerMessage, 256),
		done:   make(chan struct{}),
	}
	go nc.writeLoop()
	return nc
}

func (nc *NetworkController) writeLoop() {
	defer close(nc.done)
	for msg := range nc.out {
		if err := nc.enc.Encode(msg); err != nil {
			nc.errMu.Lock()
			nc.err = err
			nc.errMu.Unlock()
			// drain so senders never block on a dead connection
			for range nc.out {
			}
			return
		}
	}
}

// Close flushes queued messages and stops the writer.
func (nc *NetworkController) Close() error {
	nc.mu.Lock()
	if !nc.closed {
		nc.closed = true
		close(nc.out)
	}
	nc.mu.Unlock()
	<-nc.done
	nc.errMu.Lock()
	defer nc.errMu.Unlock()
	return nc.err
}

// send queues a server message.
func (nc *NetworkController) send(msg ServerMessage) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.closed {
		return
	}
	nc.out <- msg
}

// Notify implements duel.Observer.
func (nc *NetworkController) Notify(event log.GameEvent) {
	nc.send(ServerMessage{Type: "notify", Event: BuildEventView(event)})
	switch event.Type {
	case log.EventFatal:
		nc.send(ServerMessage{Type: "fatal", Error: event.Details})
	case log.EventWin:
		winner := 1
		if event.Player == nc.player {
			winner = 0
		}
		nc.send(ServerMessage{Type: "game_over", Winner: winner, Result: event.Details})
	}
}

// StateChanged implements duel.Observer.
func (nc *NetworkController) StateChanged(in duel.Interaction) {
	nc.send(ServerMessage{
		Type:        "interaction",
		State:       BuildStateView(in.State, nc.player),
		Interaction: BuildInteractionView(in, nc.player),
	})
}

// SendPrompt asks the client to decide a trap window.
func (nc *NetworkController) SendPrompt(pr *duel.TrapPrompt) {
	nc.send(ServerMessage{
		Type:  "choose_trap",
		State: BuildStateView(pr.State, nc.player),
		Trap:  BuildTrapPromptView(pr, nc.player),
	})
}

// SendError reports a failed intent.
func (nc *NetworkController) SendError(err error) {
	nc.send(ServerMessage{Type: "error", Error: err.Error(), Rejection: duel.IsRejection(err)})
}

// SendState sends a bare snapshot.
func (nc *NetworkController) SendState(st *game.TurnState) {
	nc.send(ServerMessage{Type: "state", State: BuildStateView(st, nc.player)})
}

// BuildEventView flattens a game event for the wire.
func BuildEventView(event log.GameEvent) *EventView {
	return &EventView{
		Turn:    event.Turn,
		Phase:   event.Phase,
		Player:  event.Player,
		Type:    event.Type.String(),
		Card:    event.Card,
		Details: event.Details,
		Fatal:   event.Fatal,
	}
}

// BuildTrapPromptView describes a trap prompt to the given seat.
func BuildTrapPromptView(pr *duel.TrapPrompt, player int) *TrapPromptView {
	tr := pr.Trigger
	return &TrapPromptView{
		ID:      pr.ID,
		Name:    tr.CardName(),
		Slot:    tr.Slot,
		Kind:    tr.Kind.String(),
		Message: tr.Message,
		Targets: targetViews(pr.State, tr.Targets, player, false),
	}
}

// BuildStateView creates a StateView from the perspective of the given player.
func BuildStateView(state *game.TurnState, player int) *StateView {
	if state == nil {
		return nil
	}
	me := player
	opp := game.Opponent(me)

	sv := &StateView{
		Turn:       state.TurnNumber,
		Phase:      state.Phase.String(),
		IsYourTurn: state.ActivePlayer == me,
		You:        playerView(&state.Players[me], true),
		Opponent:   playerView(&state.Players[opp], false),
	}
	if state.Winner != nil {
		w := 1
		if *state.Winner == me {
			w = 0
		}
		sv.Winner = &w
	}
	return sv
}

func playerView(p *game.PlayerState, isOwner bool) PlayerView {
	pv := PlayerView{
		Energy:       p.Energy,
		ControlLoss:  p.ControlLoss,
		HandCount:    p.HandCount,
		DeckCount:    p.DeckCount,
		DiscardCount: p.DiscardCount,
		MustDiscard:  p.MustDiscard,
		MustDestroy:  p.MustDestroyCount,
	}
	if isOwner {
		for i, c := range p.Hand {
			pv.Hand = append(pv.Hand, CardView{Index: i, ID: c.ID, Name: c.Name, Type: c.Type.String(), Cost: c.Cost})
		}
	}
	for i := range p.Battlefield {
		pv.Battlefield[i] = UnitSlotView(p.Battlefield[i])
	}
	for i := range p.Traps {
		pv.Traps[i] = TrapSlotView(p.Traps[i], isOwner)
		// the hidden side may only report a count
		if !isOwner && p.Traps[i] == nil && i < p.TrapCount {
			pv.Traps[i] = TrapView{FaceDown: true}
		}
	}
	if p.Field != nil {
		pv.Field = p.Field.Name
	}
	return pv
}

// UnitSlotView creates a UnitView for a battlefield slot.
func UnitSlotView(c *game.Card) UnitView {
	if c == nil {
		return UnitView{Empty: true}
	}
	s := c.DisplayStats()
	uv := UnitView{Name: c.Name, ATK: s.ATK, DEF: s.DEF, SPD: s.SPD, Exhausted: c.IsExhausted}
	for _, k := range c.Keywords {
		uv.Keywords = append(uv.Keywords, k.String())
	}
	return uv
}

// TrapSlotView creates a TrapView for a trap slot.
func TrapSlotView(c *game.Card, isOwner bool) TrapView {
	if c == nil {
		return TrapView{Empty: true}
	}
	if !isOwner {
		return TrapView{FaceDown: true}
	}
	return TrapView{FaceDown: true, Name: c.Name}
}

// BuildInteractionView converts an Interaction for the client's seat.
func BuildInteractionView(in duel.Interaction, player int) *InteractionView {
	return &InteractionView{
		Mode:         in.Mode.String(),
		Prompt:       in.Prompt,
		Targets:      targetViews(in.State, in.Targets, player, in.Mode == duel.ModeAwaitingDiscardChoice),
		PierceDamage: in.PierceDamage,
		Running:      in.Status.Running,
		Fatal:        in.Status.Fatal,
	}
}

// targetViews names each target from the snapshot. Discard targets index the
// hand rather than the battlefield.
func targetViews(st *game.TurnState, targets []game.Target, player int, hand bool) []TargetView {
	var out []TargetView
	for _, t := range targets {
		tv := TargetView{Player: 1, Index: t.Index}
		if t.Player == player {
			tv.Player = 0
		}
		if st != nil {
			p := &st.Players[t.Player]
			switch {
			case hand && t.Index >= 0 && t.Index < len(p.Hand):
				tv.Name = p.Hand[t.Index].Name
			case !hand && p.Unit(t.Index) != nil:
				tv.Name = p.Unit(t.Index).Name
			}
		}
		out = append(out, tv)
	}
	return out
}

// FromTargetView maps a viewer-relative target back to a seat.
func FromTargetView(tv TargetView, player int) game.Target {
	if tv.Player == 0 {
		return game.Target{Player: player, Index: tv.Index}
	}
	return game.Target{Player: game.Opponent(player), Index: tv.Index}
}
