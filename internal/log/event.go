package log

// EventType enumerates all observable session events.
type EventType int

const (
	EventSessionStart EventType = iota
	EventEngine                 // a line from the engine's own log
	EventPhaseChange
	EventNewTurn
	EventPlayCard
	EventAttackDeclare
	EventCombat
	EventPierceOffer
	EventPierce
	EventPierceSkip
	EventEffectTarget
	EventEffectCancel
	EventTrapTrigger
	EventTrapActivate
	EventTrapDecline
	EventTrapEffect
	EventCounterTrigger
	EventActionCancelled
	EventActionRedirected
	EventStale
	EventCleanupRequired
	EventDiscard
	EventForcedDestroy
	EventRejected
	EventFatal
	EventWin
)

func (e EventType) String() string {
	switch e {
	case EventSessionStart:
		return "SessionStart"
	case EventEngine:
		return "Engine"
	case EventPhaseChange:
		return "PhaseChange"
	case EventNewTurn:
		return "NewTurn"
	case EventPlayCard:
		return "PlayCard"
	case EventAttackDeclare:
		return "AttackDeclare"
	case EventCombat:
		return "Combat"
	case EventPierceOffer:
		return "PierceOffer"
	case EventPierce:
		return "Pierce"
	case EventPierceSkip:
		return "PierceSkip"
	case EventEffectTarget:
		return "EffectTarget"
	case EventEffectCancel:
		return "EffectCancel"
	case EventTrapTrigger:
		return "TrapTrigger"
	case EventTrapActivate:
		return "TrapActivate"
	case EventTrapDecline:
		return "TrapDecline"
	case EventTrapEffect:
		return "TrapEffect"
	case EventCounterTrigger:
		return "CounterTrigger"
	case EventActionCancelled:
		return "ActionCancelled"
	case EventActionRedirected:
		return "ActionRedirected"
	case EventStale:
		return "Stale"
	case EventCleanupRequired:
		return "CleanupRequired"
	case EventDiscard:
		return "Discard"
	case EventForcedDestroy:
		return "ForcedDestroy"
	case EventRejected:
		return "Rejected"
	case EventFatal:
		return "Fatal"
	case EventWin:
		return "Win"
	default:
		return "Unknown"
	}
}

// GameEvent represents a single observable event in a session.
type GameEvent struct {
	Seq     int       // monotonic sequence number
	Turn    int       // engine turn (1-based)
	Phase   string    // engine phase name
	Player  int       // acting player (0 or 1)
	Type    EventType // event type
	Card    string    // card name (if applicable)
	Details string    // human-readable detail string
	Fatal   bool      // session can no longer progress
}
