package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/peterkuimelis/sanctum/internal/game"
)

// --- Wire views of the engine's JSON ---

type cardView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Cost         int      `json:"cost"`
	Faction      string   `json:"faction"`
	Description  string   `json:"description"`
	ATK          int      `json:"atk"`
	DEF          int      `json:"def"`
	SPD          int      `json:"spd"`
	ATKActual    int      `json:"atk_actual"`
	DEFActual    int      `json:"def_actual"`
	SPDActual    int      `json:"spd_actual"`
	ATKBuff      int      `json:"atk_buff"`
	DEFBuff      int      `json:"def_buff"`
	SPDBuff      int      `json:"spd_buff"`
	WitherStacks int      `json:"wither_stacks"`
	IsCorrupt    bool     `json:"is_corrupt"`
	IsExhausted  bool     `json:"is_exhausted"`
	Keywords     []string `json:"keywords"`
}

func (v *cardView) toCard() *game.Card {
	if v == nil {
		return nil
	}
	c := &game.Card{
		ID:          v.ID,
		Name:        v.Name,
		Faction:     v.Faction,
		Type:        game.ParseCardType(v.Type),
		Cost:        v.Cost,
		Description: v.Description,
		Base:        game.Stats{ATK: v.ATK, DEF: v.DEF, SPD: v.SPD},
		Actual:      game.Stats{ATK: v.ATKActual, DEF: v.DEFActual, SPD: v.SPDActual},
		Mods: game.Modifiers{
			ATKBuff:      v.ATKBuff,
			DEFBuff:      v.DEFBuff,
			SPDBuff:      v.SPDBuff,
			WitherStacks: v.WitherStacks,
			IsCorrupt:    v.IsCorrupt,
		},
		IsExhausted: v.IsExhausted,
	}
	for _, k := range v.Keywords {
		if kw, ok := game.ParseKeyword(k); ok {
			c.Keywords = append(c.Keywords, kw)
		}
	}
	return c
}

type playerView struct {
	Energy             int         `json:"energy"`
	ControlLoss        int         `json:"control_loss"`
	MustDiscard        int         `json:"must_discard"`
	RotfallMustDestroy int         `json:"rotfall_must_destroy"`
	Hand               []*cardView `json:"hand"`
	HandCount          *int        `json:"hand_count"`
	Battlefield        []*cardView `json:"battlefield"`
	Field              *cardView   `json:"field"`
	Traps              []*cardView `json:"traps"`
	TrapCount          *int        `json:"trap_count"`
	DeckCount          int         `json:"deck_count"`
	DiscardCount       int         `json:"discard_count"`
}

func (v *playerView) toPlayer(op string) (game.PlayerState, error) {
	var p game.PlayerState
	if len(v.Battlefield) > game.BattlefieldSize {
		return p, protocolf(op, "battlefield has %d slots", len(v.Battlefield))
	}
	if len(v.Traps) > game.TrapSlots {
		return p, protocolf(op, "trap zone has %d slots", len(v.Traps))
	}
	p.Energy = v.Energy
	p.ControlLoss = v.ControlLoss
	p.MustDiscard = v.MustDiscard
	p.MustDestroyCount = v.RotfallMustDestroy
	p.DeckCount = v.DeckCount
	p.DiscardCount = v.DiscardCount
	p.Field = v.Field.toCard()
	for i, c := range v.Battlefield {
		p.Battlefield[i] = c.toCard()
	}
	if v.Hand != nil {
		p.Hand = make([]*game.Card, 0, len(v.Hand))
		for _, c := range v.Hand {
			p.Hand = append(p.Hand, c.toCard())
		}
		p.HandCount = len(p.Hand)
	} else if v.HandCount != nil {
		p.HandCount = *v.HandCount
	}
	for i, c := range v.Traps {
		p.Traps[i] = c.toCard()
		if c != nil {
			p.TrapCount++
		}
	}
	if v.Traps == nil && v.TrapCount != nil {
		p.TrapCount = *v.TrapCount
	}
	return p, nil
}

type logView struct {
	Turn    int    `json:"turn"`
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts both {turn, phase, message} objects and bare strings.
func (l *logView) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &l.Message)
	}
	type plain logView
	return json.Unmarshal(b, (*plain)(l))
}

type stateView struct {
	GameID       string      `json:"game_id"`
	Turn         *int        `json:"turn"`
	Phase        string      `json:"phase"`
	ActivePlayer *int        `json:"active_player"`
	Winner       *int        `json:"winner"`
	You          *playerView `json:"you"`
	Opponent     *playerView `json:"opponent"`
	Log          []logView   `json:"log"`
}

// toState converts the engine's perspective-relative view into seat order.
func (v *stateView) toState(op string, perspective int) (*game.TurnState, error) {
	if v == nil {
		return nil, protocolf(op, "response has no state")
	}
	switch {
	case v.Turn == nil:
		return nil, protocolf(op, "state is missing turn")
	case v.ActivePlayer == nil:
		return nil, protocolf(op, "state is missing active_player")
	case v.Phase == "":
		return nil, protocolf(op, "state is missing phase")
	case v.You == nil || v.Opponent == nil:
		return nil, protocolf(op, "state is missing a player")
	}

	s := &game.TurnState{
		TurnNumber:   *v.Turn,
		Phase:        game.Phase(v.Phase),
		ActivePlayer: *v.ActivePlayer,
		Winner:       v.Winner,
	}
	you, err := v.You.toPlayer(op)
	if err != nil {
		return nil, err
	}
	opp, err := v.Opponent.toPlayer(op)
	if err != nil {
		return nil, err
	}
	s.Players[perspective] = you
	s.Players[game.Opponent(perspective)] = opp
	for _, l := range v.Log {
		s.Log = append(s.Log, game.LogEntry{Turn: l.Turn, Phase: game.Phase(l.Phase), Message: l.Message})
	}
	if err := s.Validate(); err != nil {
		return nil, protocolf(op, "%v", err)
	}
	return s, nil
}

type targetView struct {
	Player int `json:"player"`
	Index  int `json:"index"`
}

// triggerView is the trap window description the engine embeds in attack,
// play, advance and trap responses.
type triggerView struct {
	TrapTrigger      bool            `json:"trap_trigger"`
	TrapType         string          `json:"trap_type"`
	TriggerType      string          `json:"trigger_type"`
	Trap             *cardView       `json:"trap"`
	TrapSlot         *int            `json:"trap_slot"`
	TrapOwner        *int            `json:"trap_owner"`
	TriggerMessage   string          `json:"trigger_message"`
	TriggerData      json.RawMessage `json:"trigger_data"`
	AvailableTargets []targetView    `json:"available_targets"`
	RequiresTarget   bool            `json:"requires_target"`
}

func (v *triggerView) present() bool {
	return v != nil && (v.TrapTrigger || v.TrapType != "")
}

func (v *triggerView) toTrigger(op string, owner int, kind game.TriggerKind) (*game.Trigger, error) {
	if v.TrapSlot == nil {
		return nil, protocolf(op, "trap trigger without trap_slot")
	}
	if *v.TrapSlot < 0 || *v.TrapSlot >= game.TrapSlots {
		return nil, protocolf(op, "trap slot %d out of range", *v.TrapSlot)
	}
	for _, name := range []string{v.TriggerType, v.TrapType} {
		if name == "" {
			continue
		}
		if k, err := game.ParseTriggerKind(name); err == nil {
			kind = k
			break
		}
	}
	if v.TrapOwner != nil {
		owner = *v.TrapOwner
	}
	t := &game.Trigger{
		Owner:          owner,
		Slot:           *v.TrapSlot,
		Card:           v.Trap.toCard(),
		Kind:           kind,
		Message:        v.TriggerMessage,
		RequiresTarget: v.RequiresTarget || len(v.AvailableTargets) > 0,
	}
	for _, tg := range v.AvailableTargets {
		t.Targets = append(t.Targets, game.Target{Player: tg.Player, Index: tg.Index})
	}
	if len(v.TriggerData) > 0 && !bytes.Equal(v.TriggerData, []byte("null")) {
		t.Data = v.TriggerData
	}
	return t, nil
}

type errorView struct {
	Error string `json:"error"`
}

type pendingAttackView struct {
	AttackerPlayer int `json:"attacker_player"`
	AttackerIndex  int `json:"attacker_index"`
	DefenderIndex  int `json:"defender_index"`
}

type attackResultView struct {
	errorView
	triggerView
	CombatLog         []string           `json:"combat_log"`
	AttackerDestroyed bool               `json:"attacker_destroyed"`
	DefenderDestroyed bool               `json:"defender_destroyed"`
	PierceAvailable   bool               `json:"pierce_available"`
	PierceDamage      int                `json:"pierce_damage"`
	PendingAttack     *pendingAttackView `json:"pending_attack"`
}

type playResultView struct {
	errorView
	triggerView
	Message     string `json:"message"`
	NeedsTarget bool   `json:"needs_target"`
	TargetType  string `json:"target_type"`
}

type messageResultView struct {
	errorView
	Message   string   `json:"message"`
	PierceLog []string `json:"pierce_log"`
}

type resultEnvelope[R any] struct {
	Result *R         `json:"result"`
	State  *stateView `json:"state"`
}

// advanceView covers advance_phase, discard and rotfall_destroy. Newer
// engines wrap the state; older ones answer with the bare state.
type advanceView struct {
	stateView
	triggerView
	State           *stateView `json:"state"`
	CombatLog       []string   `json:"combat_log"`
	PierceAvailable bool       `json:"pierce_available"`
	PierceDamage    int        `json:"pierce_damage"`
	AttackerIndex   *int       `json:"attacker_index"`
}

func (v *advanceView) state() *stateView {
	if v.State != nil {
		return v.State
	}
	if v.stateView.Turn == nil && v.stateView.You == nil {
		return nil
	}
	return &v.stateView
}

type redirectView struct {
	DefenderIndex *int `json:"defender_index"`
	TargetPlayer  *int `json:"target_player"`
	TargetIndex   *int `json:"target_index"`
}

type trapResultView struct {
	errorView
	Message             string        `json:"message"`
	TrapActivated       bool          `json:"trap_activated"`
	EffectResult        effectLines   `json:"effect_result"`
	CancelAction        bool          `json:"cancel_action"`
	Redirect            *redirectView `json:"redirect"`
	Negated             bool          `json:"negated"`
	AlreadyResolved     bool          `json:"already_resolved"`
	CounterSigilTrigger *triggerView  `json:"counter_sigil_trigger"`
	State               *stateView    `json:"state"`
}

// effectLines accepts a single message or a list of messages.
type effectLines []string

func (e *effectLines) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = effectLines{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("effect_result: %w", err)
	}
	*e = list
	return nil
}

// --- Request bodies ---

type newGameRequest struct {
	Faction1 string `json:"faction1"`
	Faction2 string `json:"faction2"`
}

type newGameResponse struct {
	GameID string     `json:"game_id"`
	State  *stateView `json:"state"`
}

type actorRequest struct {
	Player      int `json:"player"`
	Perspective int `json:"perspective"`
}

type playRequest struct {
	actorRequest
	CardID string `json:"card_id"`
	Resume bool   `json:"resume,omitempty"`
}

type targetRequest struct {
	actorRequest
	CardID       string `json:"card_id"`
	TargetPlayer int    `json:"target_player"`
	TargetIndex  int    `json:"target_index"`
}

type attackRequest struct {
	actorRequest
	AttackerIndex int  `json:"attacker_index"`
	DefenderIndex int  `json:"defender_index"`
	Resume        bool `json:"resume,omitempty"`
}

type pierceRequest struct {
	actorRequest
	DefenderPlayer    int `json:"defender_player"`
	PierceTargetIndex int `json:"pierce_target_index"`
	PierceDamage      int `json:"pierce_damage"`
}

type trapRequest struct {
	actorRequest
	TrapSlot     int             `json:"trap_slot"`
	Activate     bool            `json:"activate"`
	TriggerData  json.RawMessage `json:"trigger_data,omitempty"`
	TargetPlayer *int            `json:"target_player,omitempty"`
	TargetIndex  *int            `json:"target_index,omitempty"`
}

type discardRequest struct {
	actorRequest
	CardIndex int `json:"card_index"`
}

type destroyRequest struct {
	actorRequest
	UnitIndex int `json:"unit_index"`
}

type cardsResponse struct {
	Cards []*cardView `json:"cards"`
}
