package game

import (
	"errors"
	"fmt"
	"slices"
)

// Stats holds a unit's attack, defense and speed.
type Stats struct {
	ATK int
	DEF int
	SPD int
}

// Modifiers are the engine-applied adjustments on a unit.
type Modifiers struct {
	ATKBuff      int
	DEFBuff      int
	SPDBuff      int
	WitherStacks int
	IsCorrupt    bool
}

// Card is the orchestrator's read-only view of one card. Movement between
// zones is performed by the engine and only reflected here.
type Card struct {
	ID          string
	Name        string
	Faction     string
	Type        CardType
	Cost        int
	Description string
	Base        Stats
	Actual      Stats // as reported by the engine
	Mods        Modifiers
	Keywords    []Keyword
	IsExhausted bool
}

// HasKeyword reports whether the card carries the keyword.
func (c *Card) HasKeyword(k Keyword) bool {
	return c != nil && slices.Contains(c.Keywords, k)
}

// DisplayStats returns the engine's actual stats, or base plus modifiers when
// the engine did not send them. Display only.
func (c *Card) DisplayStats() Stats {
	if c.Actual != (Stats{}) {
		return c.Actual
	}
	s := Stats{
		ATK: c.Base.ATK + c.Mods.ATKBuff,
		DEF: c.Base.DEF + c.Mods.DEFBuff - c.Mods.WitherStacks,
		SPD: c.Base.SPD + c.Mods.SPDBuff,
	}
	s.ATK = max(s.ATK, 0)
	s.DEF = max(s.DEF, 1)
	s.SPD = max(s.SPD, 0)
	return s
}

func (c *Card) String() string {
	if c == nil {
		return "(empty)"
	}
	if c.Type == CardTypeUnit {
		s := c.DisplayStats()
		return fmt.Sprintf("%s [%d/%d/%d]", c.Name, s.ATK, s.DEF, s.SPD)
	}
	return c.Name
}

// PlayerState is one side of the board. Battlefield and Traps are fixed-size
// arrays so a slot holds at most one card.
type PlayerState struct {
	Energy           int
	ControlLoss      int
	Hand             []*Card // nil for the hidden side
	HandCount        int
	Battlefield      [BattlefieldSize]*Card
	Field            *Card
	Traps            [TrapSlots]*Card // owner-visible only
	TrapCount        int
	MustDiscard      int
	MustDestroyCount int
	DeckCount        int
	DiscardCount     int
}

// Unit returns the unit in a battlefield slot, or nil.
func (p *PlayerState) Unit(index int) *Card {
	if index < 0 || index >= BattlefieldSize {
		return nil
	}
	return p.Battlefield[index]
}

// UnitCount returns the number of occupied battlefield slots.
func (p *PlayerState) UnitCount() int {
	n := 0
	for _, c := range p.Battlefield {
		if c != nil {
			n++
		}
	}
	return n
}

// OccupiedSlots returns the indices of occupied battlefield slots.
func (p *PlayerState) OccupiedSlots() []int {
	var out []int
	for i, c := range p.Battlefield {
		if c != nil {
			out = append(out, i)
		}
	}
	return out
}

// HandIndex returns the index of the card with the given id in hand, or -1.
func (p *PlayerState) HandIndex(cardID string) int {
	for i, c := range p.Hand {
		if c != nil && c.ID == cardID {
			return i
		}
	}
	return -1
}

// Blocked reports whether the player owes a cleanup choice.
func (p *PlayerState) Blocked() bool {
	return p.MustDiscard > 0 || p.MustDestroyCount > 0
}

// LogEntry is one line of the engine's game log.
type LogEntry struct {
	Turn    int
	Phase   Phase
	Message string
}

// TurnState is a complete snapshot of a session. It is never mutated once
// published; every exchange produces a new one.
type TurnState struct {
	TurnNumber   int
	Phase        Phase
	ActivePlayer int
	Players      [Players]PlayerState
	Winner       *int
	Log          []LogEntry
}

// Over reports whether the game has a winner.
func (s *TurnState) Over() bool {
	return s != nil && s.Winner != nil
}

// Opponent returns the other seat.
func Opponent(player int) int {
	return 1 - player
}

var (
	errBadTurn   = errors.New("turn number must be at least 1")
	errBadActive = errors.New("active player must be 0 or 1")
	errBadWinner = errors.New("winner must be 0, 1 or absent")
	errNegative  = errors.New("negative counter")
)

// Validate checks the structural invariants of a snapshot.
func (s *TurnState) Validate() error {
	if s.TurnNumber < 1 {
		return fmt.Errorf("%w: got %d", errBadTurn, s.TurnNumber)
	}
	if s.ActivePlayer != 0 && s.ActivePlayer != 1 {
		return fmt.Errorf("%w: got %d", errBadActive, s.ActivePlayer)
	}
	if s.Winner != nil && *s.Winner != 0 && *s.Winner != 1 {
		return fmt.Errorf("%w: got %d", errBadWinner, *s.Winner)
	}
	for i, p := range s.Players {
		if p.Energy < 0 || p.ControlLoss < 0 || p.MustDiscard < 0 || p.MustDestroyCount < 0 {
			return fmt.Errorf("%w for %s", errNegative, PlayerName(i))
		}
	}
	return nil
}

// Targets lists the occupied unit slots a targeted effect may pick, seen from
// the acting player.
func (s *TurnState) Targets(actor int, kind TargetKind) []Target {
	var out []Target
	add := func(player int) {
		for _, i := range s.Players[player].OccupiedSlots() {
			out = append(out, Target{Player: player, Index: i})
		}
	}
	switch kind {
	case TargetFriendlyUnit:
		add(actor)
	case TargetEnemyUnit:
		add(Opponent(actor))
	default:
		add(actor)
		add(Opponent(actor))
	}
	return out
}

// NewEntries returns the entries of next that are not already in prev. The
// engine sends a sliding window of its latest lines, so the longest suffix of
// prev that is a prefix of next is treated as already seen.
func NewEntries(prev, next []LogEntry) []LogEntry {
	for overlap := min(len(prev), len(next)); overlap > 0; overlap-- {
		if slices.Equal(prev[len(prev)-overlap:], next[:overlap]) {
			return next[overlap:]
		}
	}
	return next
}
