package net

// Message types for the JSON protocol over TCP.

// --- Server → Client messages ---

// ServerMessage is the envelope for all server-to-client messages.
type ServerMessage struct {
	Type string `json:"type"`

	// For "notify"
	Event *EventView `json:"event,omitempty"`

	// For "state" and "interaction"
	State       *StateView       `json:"state,omitempty"`
	Interaction *InteractionView `json:"interaction,omitempty"`

	// For "choose_trap"
	Trap *TrapPromptView `json:"trap,omitempty"`

	// For "game_over"
	Winner int    `json:"winner,omitempty"`
	Result string `json:"result,omitempty"`

	// For "error" and "fatal"
	Error     string `json:"error,omitempty"`
	Rejection bool   `json:"rejection,omitempty"`
}

// EventView is a simplified game event for the client.
type EventView struct {
	Turn    int    `json:"turn"`
	Phase   string `json:"phase"`
	Player  int    `json:"player"`
	Type    string `json:"type"`
	Card    string `json:"card,omitempty"`
	Details string `json:"details"`
	Fatal   bool   `json:"fatal,omitempty"`
}

// StateView is the game state from one player's perspective.
type StateView struct {
	You        PlayerView `json:"you"`
	Opponent   PlayerView `json:"opponent"`
	Turn       int        `json:"turn"`
	Phase      string     `json:"phase"`
	IsYourTurn bool       `json:"is_your_turn"`
	Winner     *int       `json:"winner,omitempty"` // 0 = you, 1 = opponent
}

// PlayerView shows one side of the board.
type PlayerView struct {
	Energy       int         `json:"energy"`
	ControlLoss  int         `json:"control_loss"`
	HandCount    int         `json:"hand_count"`
	Hand         []CardView  `json:"hand,omitempty"` // only for "you"
	Battlefield  [5]UnitView `json:"battlefield"`
	Traps        [3]TrapView `json:"traps"`
	Field        string      `json:"field,omitempty"`
	DeckCount    int         `json:"deck_count"`
	DiscardCount int         `json:"discard_count"`
	MustDiscard  int         `json:"must_discard,omitempty"`
	MustDestroy  int         `json:"must_destroy,omitempty"`
}

// CardView describes a card in hand.
type CardView struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Cost  int    `json:"cost"`
}

// UnitView describes one battlefield slot.
type UnitView struct {
	Empty     bool     `json:"empty,omitempty"`
	Name      string   `json:"name,omitempty"`
	ATK       int      `json:"atk,omitempty"`
	DEF       int      `json:"def,omitempty"`
	SPD       int      `json:"spd,omitempty"`
	Exhausted bool     `json:"exhausted,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

// TrapView describes one trap slot. The opponent's traps are face down.
type TrapView struct {
	Empty    bool   `json:"empty,omitempty"`
	FaceDown bool   `json:"face_down,omitempty"`
	Name     string `json:"name,omitempty"`
}

// TargetView addresses a slot relative to the viewer: player 0 is you.
type TargetView struct {
	Player int    `json:"player"`
	Index  int    `json:"index"`
	Name   string `json:"name,omitempty"`
}

// InteractionView is what the client may do now.
type InteractionView struct {
	Mode         string       `json:"mode"`
	Prompt       string       `json:"prompt"`
	Targets      []TargetView `json:"targets,omitempty"`
	PierceDamage int          `json:"pierce_damage,omitempty"`
	Running      bool         `json:"running,omitempty"`
	Fatal        bool         `json:"fatal,omitempty"`
}

// TrapPromptView asks whether to spring a trap.
type TrapPromptView struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Slot    int          `json:"slot"`
	Kind    string       `json:"kind"`
	Message string       `json:"message"`
	Targets []TargetView `json:"targets,omitempty"`
}

// --- Client → Server messages ---

// ClientMessage is the envelope for all client-to-server messages.
type ClientMessage struct {
	Type string `json:"type"`

	// For "join" and "new_game"
	Faction         string `json:"faction,omitempty"`
	OpponentFaction string `json:"opponent_faction,omitempty"`

	// For "play"
	CardID string `json:"card_id,omitempty"`

	// For "attack"
	Attacker int `json:"attacker"`
	Defender int `json:"defender"`

	// For "pierce", "discard", "destroy", and "target" (with Player)
	Index  int `json:"index"`
	Player int `json:"player"`

	// For "trap"
	PromptID string      `json:"prompt_id,omitempty"`
	Activate bool        `json:"activate,omitempty"`
	Target   *TargetView `json:"target,omitempty"`
}
