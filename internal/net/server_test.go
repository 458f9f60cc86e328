package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/peterkuimelis/sanctum/internal/duel"
	"github.com/peterkuimelis/sanctum/internal/engine"
	"github.com/peterkuimelis/sanctum/internal/game"
)

// fakeEngine answers advance and trap calls from functions and records
// every trap request.
type fakeEngine struct {
	initial  *game.TurnState
	advance  func(player int) (*engine.AdvanceResult, error)
	activate func(req engine.TrapRequest) (*engine.TrapResult, error)

	mu    sync.Mutex
	traps []engine.TrapRequest
}

func (f *fakeEngine) trapRequests() []engine.TrapRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.TrapRequest(nil), f.traps...)
}

func (f *fakeEngine) NewSession(context.Context, string, string) (string, *game.TurnState, error) {
	return "g1", f.initial, nil
}

func (f *fakeEngine) PlayCard(context.Context, string, int, string, bool) (*engine.PlayResult, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeEngine) ResolveTarget(context.Context, string, int, string, game.Target) (*engine.MessageResult, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeEngine) DeclareAttack(context.Context, string, int, int, int, bool) (*engine.AttackResult, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeEngine) ResolvePierce(context.Context, string, int, int, int, int) (*engine.MessageResult, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeEngine) AdvancePhase(_ context.Context, _ string, player int) (*engine.AdvanceResult, error) {
	return f.advance(player)
}

func (f *fakeEngine) ActivateTrap(_ context.Context, _ string, req engine.TrapRequest) (*engine.TrapResult, error) {
	f.mu.Lock()
	f.traps = append(f.traps, req)
	f.mu.Unlock()
	return f.activate(req)
}

func (f *fakeEngine) Discard(context.Context, string, int, int) (*engine.AdvanceResult, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeEngine) ForcedDestroy(context.Context, string, int, int) (*engine.AdvanceResult, error) {
	return nil, errors.New("not scripted")
}

func board(turn int, phase game.Phase, active int, log ...string) *game.TurnState {
	st := &game.TurnState{TurnNumber: turn, Phase: phase, ActivePlayer: active}
	for _, l := range log {
		st.Log = append(st.Log, game.LogEntry{Turn: turn, Phase: phase, Message: l})
	}
	s := game.Stats{ATK: 3, DEF: 2, SPD: 1}
	st.Players[0].Battlefield[0] = &game.Card{ID: "sentry", Name: "Sentry", Type: game.CardTypeUnit, Base: s, Actual: s}
	st.Players[0].Hand = []*game.Card{{ID: "c-unit", Name: "Ironclad", Type: game.CardTypeUnit, Cost: 2}}
	st.Players[0].HandCount = 1
	st.Players[1].HandCount = 4
	return st
}

// testConn is the client end of a served pipe.
type testConn struct {
	t    *testing.T
	conn net.Conn
	enc  *json.Encoder
	msgs chan ServerMessage
	done chan error
}

func serve(t *testing.T, eng duel.Engine, cfg duel.DuelConfig) *testConn {
	t.Helper()
	return serveWith(t, &Server{Engine: eng, Duel: cfg, Diag: zaptest.NewLogger(t)})
}

func serveWith(t *testing.T, srv *Server) *testConn {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	tc := &testConn{
		t:    t,
		conn: clientConn,
		enc:  json.NewEncoder(clientConn),
		msgs: make(chan ServerMessage, 256),
		done: make(chan error, 1),
	}
	go func() {
		tc.done <- srv.Serve(context.Background(), serverConn)
		serverConn.Close()
	}()
	go func() {
		dec := json.NewDecoder(clientConn)
		for {
			var m ServerMessage
			if err := dec.Decode(&m); err != nil {
				close(tc.msgs)
				return
			}
			tc.msgs <- m
		}
	}()
	t.Cleanup(func() { clientConn.Close() })
	return tc
}

func (tc *testConn) send(m ClientMessage) {
	tc.t.Helper()
	require.NoError(tc.t, tc.enc.Encode(m))
}

// waitFor returns the first message of type typ that satisfies match.
func (tc *testConn) waitFor(typ string, match func(ServerMessage) bool) ServerMessage {
	tc.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case m, ok := <-tc.msgs:
			require.True(tc.t, ok, "connection closed while waiting for %q", typ)
			if m.Type == typ && (match == nil || match(m)) {
				return m
			}
		case <-timeout:
			tc.t.Fatalf("timed out waiting for %q", typ)
		}
	}
}

func mode(name string) func(ServerMessage) bool {
	return func(m ServerMessage) bool {
		return m.Interaction != nil && m.Interaction.Mode == name
	}
}

func TestServeJoinAndAdvance(t *testing.T) {
	eng := &fakeEngine{
		initial: board(1, game.PhaseDeploy, 0),
		advance: func(player int) (*engine.AdvanceResult, error) {
			return &engine.AdvanceResult{State: board(1, game.PhaseCombat, 0)}, nil
		},
	}
	tc := serve(t, eng, duel.DuelConfig{PlayerFaction: "Skyforge", OpponentFaction: "Miasma"})

	tc.send(ClientMessage{Type: "join", Faction: "Miasma"})
	m := tc.waitFor("interaction", mode("Idle"))
	require.NotNil(t, m.State)
	assert.Equal(t, "Deploy Phase", m.State.Phase)
	assert.True(t, m.State.IsYourTurn)
	require.Len(t, m.State.You.Hand, 1)
	assert.Equal(t, "c-unit", m.State.You.Hand[0].ID)
	assert.Equal(t, 4, m.State.Opponent.HandCount)

	tc.send(ClientMessage{Type: "advance"})
	m = tc.waitFor("interaction", func(m ServerMessage) bool {
		return m.State != nil && m.State.Phase == "Combat Phase"
	})
	assert.Equal(t, "Idle", m.Interaction.Mode)

	tc.send(ClientMessage{Type: "quit"})
	select {
	case err := <-tc.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after quit")
	}
}

func TestServeRequiresJoin(t *testing.T) {
	tc := serve(t, &fakeEngine{initial: board(1, game.PhaseDeploy, 0)}, duel.DuelConfig{})
	tc.send(ClientMessage{Type: "advance"})
	select {
	case err := <-tc.done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected join")
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not reject the connection")
	}
}

func TestServeReportsRejection(t *testing.T) {
	eng := &fakeEngine{initial: board(1, game.PhaseDeploy, 0)}
	tc := serve(t, eng, duel.DuelConfig{})
	tc.send(ClientMessage{Type: "join"})
	tc.waitFor("interaction", mode("Idle"))

	tc.send(ClientMessage{Type: "skip_pierce"})
	m := tc.waitFor("error", nil)
	assert.True(t, m.Rejection)
	assert.NotEmpty(t, m.Error)
}

func TestServeRoutesTrapPrompt(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	eng := &fakeEngine{
		initial: board(1, game.PhaseEnd, 0),
		advance: func(player int) (*engine.AdvanceResult, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			switch calls {
			case 1:
				// the human ends the turn
				return &engine.AdvanceResult{State: board(2, game.PhaseStart, 1)}, nil
			case 2:
				// the opponent readies a unit into the human's trap
				return &engine.AdvanceResult{
					State: board(2, game.PhaseDeploy, 1),
					Trigger: &game.Trigger{
						Owner:   0,
						Slot:    1,
						Card:    &game.Card{ID: "snare", Name: "Snare", Type: game.CardTypeTrap},
						Kind:    game.TriggerReadiness,
						Message: "Wraith readies",
					},
				}, nil
			default:
				return &engine.AdvanceResult{State: board(3, game.PhaseStart, 0)}, nil
			}
		},
		activate: func(req engine.TrapRequest) (*engine.TrapResult, error) {
			return &engine.TrapResult{State: board(2, game.PhaseDeploy, 1), Activated: req.Activate}, nil
		},
	}
	tc := serve(t, eng, duel.DuelConfig{AutoOpponent: true, Policy: duel.NeverActivate})
	tc.send(ClientMessage{Type: "join"})
	tc.waitFor("interaction", mode("Idle"))

	tc.send(ClientMessage{Type: "advance"})
	m := tc.waitFor("choose_trap", nil)
	require.NotNil(t, m.Trap)
	assert.Equal(t, "Snare", m.Trap.Name)
	assert.Equal(t, "readiness", m.Trap.Kind)
	assert.Equal(t, 1, m.Trap.Slot)

	tc.send(ClientMessage{Type: "trap", PromptID: m.Trap.ID, Activate: true})
	tc.waitFor("interaction", func(m ServerMessage) bool {
		return m.State != nil && m.State.Turn == 3 && m.Interaction.Mode == "Idle"
	})

	reqs := eng.trapRequests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Activate)
	assert.Equal(t, 0, reqs[0].Player)
	assert.Equal(t, 1, reqs[0].Slot)
}

func TestServeUnknownPrompt(t *testing.T) {
	tc := serve(t, &fakeEngine{initial: board(1, game.PhaseDeploy, 0)}, duel.DuelConfig{})
	tc.send(ClientMessage{Type: "join"})
	tc.waitFor("interaction", mode("Idle"))

	tc.send(ClientMessage{Type: "trap", PromptID: "nope", Activate: true})
	m := tc.waitFor("error", nil)
	assert.Contains(t, m.Error, "nope")
}

func TestServeWritesTranscript(t *testing.T) {
	var transcript bytes.Buffer
	srv := &Server{
		Engine:     &fakeEngine{initial: board(1, game.PhaseDeploy, 0, "The duel begins.")},
		Diag:       zaptest.NewLogger(t),
		Transcript: &transcript,
	}
	tc := serveWith(t, srv)
	tc.send(ClientMessage{Type: "join"})
	tc.waitFor("interaction", mode("Idle"))
	tc.send(ClientMessage{Type: "quit"})
	select {
	case err := <-tc.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after quit")
	}

	assert.Contains(t, transcript.String(), "The duel begins.")
	assert.Contains(t, transcript.String(), "T1 ")
}
