package game

import "strings"

// --- Constants ---

const (
	BattlefieldSize = 5
	TrapSlots       = 3
	HandLimit       = 7
	Players         = 2
)

// --- Enums ---

// Phase is the engine's phase name. The engine may introduce phases the
// orchestrator does not know about, so it is kept as a string.
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseDeploy Phase = "deploy"
	PhaseCombat Phase = "combat"
	PhaseEnd    Phase = "end"
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "Start Phase"
	case PhaseDeploy:
		return "Deploy Phase"
	case PhaseCombat:
		return "Combat Phase"
	case PhaseEnd:
		return "End Phase"
	case "":
		return "None"
	default:
		return strings.ToUpper(string(p[:1])) + string(p[1:]) + " Phase"
	}
}

type CardType int

const (
	CardTypeUnknown CardType = iota
	CardTypeUnit
	CardTypeTechnique
	CardTypeTrap
	CardTypeField
)

func (t CardType) String() string {
	switch t {
	case CardTypeUnit:
		return "UNIT"
	case CardTypeTechnique:
		return "TECHNIQUE"
	case CardTypeTrap:
		return "TRAP"
	case CardTypeField:
		return "FIELD"
	default:
		return "UNKNOWN"
	}
}

// ParseCardType maps an engine card type string to a CardType.
func ParseCardType(s string) CardType {
	switch strings.ToUpper(s) {
	case "UNIT":
		return CardTypeUnit
	case "TECHNIQUE":
		return CardTypeTechnique
	case "TRAP":
		return CardTypeTrap
	case "FIELD":
		return CardTypeField
	default:
		return CardTypeUnknown
	}
}

type Keyword int

const (
	KeywordSwift Keyword = iota
	KeywordGuard
	KeywordPierce
	KeywordWither
	KeywordCorrupt
	KeywordEcho
	KeywordRetreat
)

func (k Keyword) String() string {
	switch k {
	case KeywordSwift:
		return "Swift"
	case KeywordGuard:
		return "Guard"
	case KeywordPierce:
		return "Pierce"
	case KeywordWither:
		return "Wither"
	case KeywordCorrupt:
		return "Corrupt"
	case KeywordEcho:
		return "Echo"
	case KeywordRetreat:
		return "Retreat"
	default:
		return "Unknown"
	}
}

// ParseKeyword maps an engine keyword string to a Keyword.
func ParseKeyword(s string) (Keyword, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "swift":
		return KeywordSwift, true
	case "guard":
		return KeywordGuard, true
	case "pierce":
		return KeywordPierce, true
	case "wither":
		return KeywordWither, true
	case "corrupt":
		return KeywordCorrupt, true
	case "echo":
		return KeywordEcho, true
	case "retreat":
		return KeywordRetreat, true
	default:
		return 0, false
	}
}

// TargetKind names which side's units a targeted effect may pick.
type TargetKind string

const (
	TargetAnyUnit      TargetKind = "any_unit"
	TargetFriendlyUnit TargetKind = "friendly_unit"
	TargetEnemyUnit    TargetKind = "enemy_unit"
)

// PlayerName returns "P1" or "P2" for display.
func PlayerName(p int) string {
	if p == 1 {
		return "P2"
	}
	return "P1"
}
