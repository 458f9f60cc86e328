package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/peterkuimelis/sanctum/internal/game"
)

// stateJSON is a minimal engine state from seat 0's point of view.
func stateJSON(turn int, phase string, active int) map[string]any {
	return map[string]any{
		"game_id":       "g1",
		"turn":          turn,
		"phase":         phase,
		"active_player": active,
		"winner":        nil,
		"you": map[string]any{
			"energy":      3,
			"hand":        []any{map[string]any{"id": "c1", "name": "Ironclad", "type": "UNIT", "atk": 3, "def": 2, "spd": 1, "keywords": []string{"Guard"}}},
			"battlefield": []any{map[string]any{"id": "u1", "name": "Sentry", "type": "UNIT", "atk": 2, "def": 2, "spd": 2, "atk_actual": 2, "def_actual": 2, "spd_actual": 2}, nil, nil, nil, nil},
			"traps":       []any{nil, map[string]any{"id": "t1", "name": "False Step", "type": "TRAP"}, nil},
		},
		"opponent": map[string]any{
			"energy":      2,
			"hand_count":  4,
			"battlefield": []any{nil, nil, map[string]any{"id": "u9", "name": "Husk", "type": "UNIT", "atk": 1, "def": 1, "spd": 1}, nil, nil},
			"trap_count":  2,
		},
		"log": []any{map[string]any{"turn": turn, "phase": phase, "message": "hello"}},
	}
}

type captured struct {
	path string
	body map[string]any
	hdr  http.Header
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, c captured)) (*Client, *[]captured) {
	t.Helper()
	var calls []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{path: r.URL.Path, hdr: r.Header.Clone()}
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&c.body)
		}
		calls = append(calls, c)
		handler(w, c)
	}))
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, Logger: zaptest.NewLogger(t)}), &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewSession(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusOK, map[string]any{"game_id": "g1", "state": stateJSON(1, "start", 0)})
	})

	id, st, err := c.NewSession(context.Background(), "Skyforge", "Miasma")
	require.NoError(t, err)
	assert.Equal(t, "g1", id)
	assert.Equal(t, 1, st.TurnNumber)
	assert.Equal(t, game.PhaseStart, st.Phase)

	you := st.Players[0]
	assert.Equal(t, 3, you.Energy)
	require.Len(t, you.Hand, 1)
	assert.True(t, you.Hand[0].HasKeyword(game.KeywordGuard))
	assert.Equal(t, "Sentry", you.Battlefield[0].Name)
	assert.Equal(t, 1, you.TrapCount)
	assert.Equal(t, "False Step", you.Traps[1].Name)

	opp := st.Players[1]
	assert.Nil(t, opp.Hand)
	assert.Equal(t, 4, opp.HandCount)
	assert.Equal(t, 2, opp.TrapCount)
	assert.Equal(t, "Husk", opp.Battlefield[2].Name)

	require.Len(t, *calls, 1)
	assert.Equal(t, "/api/new_game", (*calls)[0].path)
	assert.Equal(t, "Skyforge", (*calls)[0].body["faction1"])
	assert.NotEmpty(t, (*calls)[0].hdr.Get("X-Request-ID"))
}

func TestPerspectiveMapsSeats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, stateJSON(2, "deploy", 1))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Perspective: 1})
	st, err := c.State(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Players[1].Energy, "you belongs to the perspective seat")
	assert.Equal(t, 2, st.Players[0].Energy)
}

func TestDeclareAttackCombat(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{
				"success":            true,
				"combat_log":         []string{"Sentry attacks Husk", "Husk is destroyed"},
				"defender_destroyed": true,
				"pierce_available":   true,
				"pierce_damage":      3,
			},
			"state": stateJSON(2, "combat", 0),
		})
	})

	res, err := c.DeclareAttack(context.Background(), "g1", 0, 0, 2, false)
	require.NoError(t, err)
	assert.Nil(t, res.Trigger)
	assert.True(t, res.DefenderDestroyed)
	assert.True(t, res.PierceAvailable)
	assert.Equal(t, 3, res.PierceDamage)
	assert.Len(t, res.CombatLog, 2)

	body := (*calls)[0].body
	assert.Equal(t, "/api/game/g1/attack", (*calls)[0].path)
	assert.EqualValues(t, 0, body["attacker_index"])
	assert.EqualValues(t, 2, body["defender_index"])
	assert.EqualValues(t, 0, body["perspective"])
	_, hasResume := body["resume"]
	assert.False(t, hasResume)
}

func TestDeclareAttackTrapTrigger(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{
				"trap_trigger":    true,
				"trap":            map[string]any{"id": "t7", "name": "Decoy Protocol", "type": "TRAP"},
				"trap_slot":       2,
				"trigger_message": "Sentry is attacking!",
				"trigger_data":    map[string]any{"attacker_name": "Sentry"},
				"pending_attack":  map[string]any{"attacker_player": 0, "attacker_index": 0, "defender_index": 2},
				"available_targets": []any{
					map[string]any{"player": 1, "index": 2},
					map[string]any{"player": 1, "index": 4},
				},
			},
			"state": stateJSON(2, "combat", 0),
		})
	})

	res, err := c.DeclareAttack(context.Background(), "g1", 0, 0, 2, true)
	require.NoError(t, err)
	require.NotNil(t, res.Trigger)
	tr := res.Trigger
	assert.Equal(t, 1, tr.Owner, "attack traps belong to the defender")
	assert.Equal(t, 2, tr.Slot)
	assert.Equal(t, game.TriggerAttack, tr.Kind)
	assert.Equal(t, "Decoy Protocol", tr.CardName())
	assert.True(t, tr.NeedsChoice())
	assert.JSONEq(t, `{"attacker_name":"Sentry"}`, string(tr.Data))
	require.NotNil(t, res.Pending)
	assert.Equal(t, 2, res.Pending.DefenderIndex)
	assert.Equal(t, true, (*calls)[0].body["resume"])
}

func TestRejectionInsideResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{"error": "Unit is exhausted and cannot attack"},
			"state":  stateJSON(2, "combat", 0),
		})
	})

	_, err := c.DeclareAttack(context.Background(), "g1", 0, 0, 2, false)
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "attack", re.Op)
	assert.Contains(t, re.Reason, "exhausted")
	assert.False(t, IsProtocol(err))
}

func TestRejectionStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Not enough energy"})
	})

	_, err := c.PlayCard(context.Background(), "g1", 0, "c1", false)
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
}

func TestActivateTrapStale(t *testing.T) {
	t.Run("missing slot", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "No trap in that slot"})
		})
		_, err := c.ActivateTrap(context.Background(), "g1", TrapRequest{Player: 1, Slot: 0})
		assert.ErrorIs(t, err, ErrStale)
		assert.False(t, IsRejected(err))
	})
	t.Run("already resolved flag", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			writeJSON(w, http.StatusOK, map[string]any{"already_resolved": true, "state": stateJSON(2, "combat", 0)})
		})
		_, err := c.ActivateTrap(context.Background(), "g1", TrapRequest{Player: 1, Slot: 0})
		assert.ErrorIs(t, err, ErrStale)
	})
}

func TestActivateTrapFlags(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"message":        "Activated Decoy Protocol",
			"trap_activated": true,
			"effect_result":  "Attack redirected",
			"redirect":       map[string]any{"defender_index": 4},
			"counter_sigil_trigger": map[string]any{
				"trap_slot":       0,
				"trap":            map[string]any{"id": "cs", "name": "Counter-Sigil", "type": "TRAP"},
				"trigger_message": "Decoy Protocol has been activated!",
			},
			"state": stateJSON(2, "combat", 0),
		})
	})

	tg := game.Target{Player: 1, Index: 4}
	res, err := c.ActivateTrap(context.Background(), "g1", TrapRequest{
		Player:      1,
		Slot:        2,
		Activate:    true,
		Target:      &tg,
		TriggerData: json.RawMessage(`{"attacker_name":"Sentry"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Activated)
	assert.Equal(t, []string{"Attack redirected"}, res.Effects)
	require.NotNil(t, res.Redirect)
	assert.Equal(t, game.Target{Player: 1, Index: 4}, *res.Redirect)
	require.NotNil(t, res.Counter)
	assert.Equal(t, game.TriggerCounter, res.Counter.Kind)
	assert.Equal(t, 0, res.Counter.Owner, "counter belongs to the other side")

	body := (*calls)[0].body
	assert.Equal(t, true, body["activate"])
	assert.EqualValues(t, 4, body["target_index"])
	assert.Equal(t, map[string]any{"attacker_name": "Sentry"}, body["trigger_data"])
}

func TestAdvancePhaseShapes(t *testing.T) {
	t.Run("bare state", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			writeJSON(w, http.StatusOK, stateJSON(3, "end", 1))
		})
		res, err := c.AdvancePhase(context.Background(), "g1", 0)
		require.NoError(t, err)
		assert.Equal(t, game.PhaseEnd, res.State.Phase)
		assert.Nil(t, res.Trigger)
	})
	t.Run("envelope with readiness trap", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			writeJSON(w, http.StatusOK, map[string]any{
				"state":           stateJSON(3, "start", 1),
				"trap_type":       "ready_trap_trigger",
				"trap_slot":       1,
				"trigger_message": "Sentry has become ready!",
				"combat_log":      []string{"AI attacks"},
			})
		})
		res, err := c.AdvancePhase(context.Background(), "g1", 1)
		require.NoError(t, err)
		require.NotNil(t, res.Trigger)
		assert.Equal(t, game.TriggerReadiness, res.Trigger.Kind)
		assert.Equal(t, 1, res.Trigger.Owner)
		assert.Equal(t, []string{"AI attacks"}, res.CombatLog)
	})
	t.Run("missing state", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			writeJSON(w, http.StatusOK, map[string]any{"combat_log": []string{"x"}})
		})
		_, err := c.AdvancePhase(context.Background(), "g1", 1)
		var pe *ProtocolError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "advance_phase", pe.Op)
	})
}

func TestProtocolAndTransportFailures(t *testing.T) {
	t.Run("not json", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		})
		_, err := c.Discard(context.Background(), "g1", 0, 1)
		assert.True(t, IsProtocol(err))
	})
	t.Run("oversized battlefield", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			st := stateJSON(2, "deploy", 0)
			st["you"].(map[string]any)["battlefield"] = make([]any, 6)
			writeJSON(w, http.StatusOK, st)
		})
		_, err := c.ForcedDestroy(context.Background(), "g1", 0, 1)
		assert.True(t, IsProtocol(err))
	})
	t.Run("server error", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := c.AdvancePhase(context.Background(), "g1", 0)
		require.Error(t, err)
		assert.False(t, IsProtocol(err))
		assert.False(t, IsRejected(err))
	})
	t.Run("cancelled context", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
			writeJSON(w, http.StatusOK, stateJSON(1, "start", 0))
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.AdvancePhase(ctx, "g1", 0)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestPlayCardNeedsTarget(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{"success": true, "needs_target": true, "target_type": "enemy_unit", "message": "Choose a target"},
			"state":  stateJSON(2, "deploy", 0),
		})
	})
	res, err := c.PlayCard(context.Background(), "g1", 0, "c1", false)
	require.NoError(t, err)
	assert.True(t, res.NeedsTarget)
	assert.Equal(t, game.TargetEnemyUnit, res.TargetKind)
	assert.Nil(t, res.Trigger)
}

func TestPlayCardDeploymentTrigger(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{"trap_trigger": true, "trap_slot": 0, "trigger_message": "Ironclad has been deployed!"},
			"state":  stateJSON(2, "deploy", 0),
		})
	})
	res, err := c.PlayCard(context.Background(), "g1", 0, "c1", false)
	require.NoError(t, err)
	require.NotNil(t, res.Trigger)
	assert.Equal(t, game.TriggerDeployment, res.Trigger.Kind)
	assert.Equal(t, 1, res.Trigger.Owner)
}

func TestCards(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ captured) {
		writeJSON(w, http.StatusOK, map[string]any{"cards": []any{
			map[string]any{"id": "a", "name": "A", "type": "FIELD"},
			map[string]any{"id": "b", "name": "B", "type": "TECHNIQUE"},
		}})
	})
	cards, err := c.Cards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, game.CardTypeField, cards[0].Type)
}
