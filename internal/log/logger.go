package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// EventLogger is the interface for logging session events.
type EventLogger interface {
	Log(event GameEvent)
	Events() []GameEvent
}

// --- MemoryLogger: stores events in memory for test assertions ---

// MemoryLogger is safe for concurrent use; the opponent loop logs while
// presentation adapters read.
type MemoryLogger struct {
	mu     sync.Mutex
	events []GameEvent
	seq    int
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(event GameEvent) {
	l.record(event)
}

func (l *MemoryLogger) record(event GameEvent) GameEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	event.Seq = l.seq
	l.events = append(l.events, event)
	return event
}

// Events returns a copy of all recorded events.
func (l *MemoryLogger) Events() []GameEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]GameEvent, len(l.events))
	copy(out, l.events)
	return out
}

// EventsOfType returns all events matching the given type.
func (l *MemoryLogger) EventsOfType(t EventType) []GameEvent {
	var result []GameEvent
	for _, e := range l.Events() {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// LastEvent returns the most recent event, or a zero event if none.
func (l *MemoryLogger) LastEvent() GameEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return GameEvent{}
	}
	return l.events[len(l.events)-1]
}

// Since returns the events with a sequence number greater than seq.
func (l *MemoryLogger) Since(seq int) []GameEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []GameEvent
	for _, e := range l.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// --- TextLogger: writes human-readable lines to an io.Writer ---

type TextLogger struct {
	MemoryLogger
	w io.Writer
}

func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{w: w}
}

func (l *TextLogger) Log(event GameEvent) {
	e := l.MemoryLogger.record(event)
	fmt.Fprintln(l.w, FormatEvent(e))
}

// --- Formatting ---

// playerName returns "P1" or "P2" for display.
func playerName(p int) string {
	return fmt.Sprintf("P%d", p+1)
}

// FormatEvent formats a single event as a human-readable line. Fatal events
// carry a marker so they stand apart from play messages.
func FormatEvent(e GameEvent) string {
	phase := e.Phase
	if phase == "" {
		phase = "          "
	}
	// Pad phase to 16 chars for alignment
	for len(phase) < 16 {
		phase += " "
	}

	if e.Fatal {
		return fmt.Sprintf("T%-2d %s| !! FATAL: %s", e.Turn, phase, e.Details)
	}
	return fmt.Sprintf("T%-2d %s| %s", e.Turn, phase, e.Details)
}

// FormatAll formats all events as a multi-line string.
func FormatAll(events []GameEvent) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(FormatEvent(e))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// --- Helper constructors for common events ---

func NewSessionStartEvent(sessionID string, playerFaction, opponentFaction string) GameEvent {
	return GameEvent{
		Turn:    1,
		Type:    EventSessionStart,
		Details: fmt.Sprintf("=== Session %s: %s vs %s ===", sessionID, playerFaction, opponentFaction),
	}
}

func NewEngineEvent(turn int, phase string, message string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Type:    EventEngine,
		Details: message,
	}
}

func NewPhaseChangeEvent(turn int, phase string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Type:    EventPhaseChange,
		Details: fmt.Sprintf("Phase → %s", phase),
	}
}

func NewTurnEvent(turn int, phase string, player int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventNewTurn,
		Details: fmt.Sprintf("=== Turn %d (%s) ===", turn, playerName(player)),
	}
}

func NewPlayCardEvent(turn int, phase string, player int, cardName string, message string) GameEvent {
	details := fmt.Sprintf("%s plays %s", playerName(player), cardName)
	if message != "" {
		details += ": " + message
	}
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventPlayCard,
		Card:    cardName,
		Details: details,
	}
}

func NewAttackDeclareEvent(turn int, phase string, player int, attacker string, defender string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventAttackDeclare,
		Card:    attacker,
		Details: fmt.Sprintf("%s declares attack: %s → %s", playerName(player), attacker, defender),
	}
}

func NewCombatEvent(turn int, phase string, player int, line string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventCombat,
		Details: line,
	}
}

func NewPierceOfferEvent(turn int, phase string, player int, damage int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventPierceOffer,
		Details: fmt.Sprintf("%s may pierce for %d overflow damage", playerName(player), damage),
	}
}

func NewPierceEvent(turn int, phase string, player int, target string, damage int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventPierce,
		Card:    target,
		Details: fmt.Sprintf("%s pierces %s for %d", playerName(player), target, damage),
	}
}

func NewPierceSkipEvent(turn int, phase string, player int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventPierceSkip,
		Details: fmt.Sprintf("%s skips pierce", playerName(player)),
	}
}

func NewEffectTargetEvent(turn int, phase string, player int, cardName string, target string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventEffectTarget,
		Card:    cardName,
		Details: fmt.Sprintf("%s targets %s with %s", playerName(player), target, cardName),
	}
}

func NewEffectCancelEvent(turn int, phase string, player int, cardName string, reason string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventEffectCancel,
		Card:    cardName,
		Details: fmt.Sprintf("%s fizzles (%s)", cardName, reason),
	}
}

func NewTrapTriggerEvent(turn int, phase string, owner int, trapName string, kind string, message string) GameEvent {
	details := fmt.Sprintf("%s's %s can respond to %s", playerName(owner), trapName, kind)
	if message != "" {
		details += ": " + message
	}
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  owner,
		Type:    EventTrapTrigger,
		Card:    trapName,
		Details: details,
	}
}

func NewTrapActivateEvent(turn int, phase string, owner int, trapName string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  owner,
		Type:    EventTrapActivate,
		Card:    trapName,
		Details: fmt.Sprintf("%s activates %s", playerName(owner), trapName),
	}
}

func NewTrapDeclineEvent(turn int, phase string, owner int, trapName string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  owner,
		Type:    EventTrapDecline,
		Card:    trapName,
		Details: fmt.Sprintf("%s does not activate %s", playerName(owner), trapName),
	}
}

func NewTrapEffectEvent(turn int, phase string, owner int, trapName string, line string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  owner,
		Type:    EventTrapEffect,
		Card:    trapName,
		Details: line,
	}
}

func NewCounterTriggerEvent(turn int, phase string, owner int, trapName string, against string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  owner,
		Type:    EventCounterTrigger,
		Card:    trapName,
		Details: fmt.Sprintf("%s's %s can counter %s", playerName(owner), trapName, against),
	}
}

func NewActionCancelledEvent(turn int, phase string, player int, action string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventActionCancelled,
		Details: fmt.Sprintf("%s's %s is cancelled", playerName(player), action),
	}
}

func NewActionRedirectedEvent(turn int, phase string, player int, action string, target string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventActionRedirected,
		Details: fmt.Sprintf("%s's %s is redirected to %s", playerName(player), action, target),
	}
}

func NewStaleEvent(turn int, phase string, owner int, trapName string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  owner,
		Type:    EventStale,
		Card:    trapName,
		Details: fmt.Sprintf("%s was already resolved", trapName),
	}
}

func NewCleanupRequiredEvent(turn int, phase string, player int, discard int, destroy int) GameEvent {
	var parts []string
	if discard > 0 {
		parts = append(parts, fmt.Sprintf("discard %d", discard))
	}
	if destroy > 0 {
		parts = append(parts, fmt.Sprintf("destroy %d unit(s)", destroy))
	}
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventCleanupRequired,
		Details: fmt.Sprintf("%s must %s before the turn can continue", playerName(player), strings.Join(parts, " and ")),
	}
}

func NewDiscardEvent(turn int, phase string, player int, cardName string, remaining int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventDiscard,
		Card:    cardName,
		Details: fmt.Sprintf("%s discards %s (%d left)", playerName(player), cardName, remaining),
	}
}

func NewForcedDestroyEvent(turn int, phase string, player int, cardName string, remaining int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventForcedDestroy,
		Card:    cardName,
		Details: fmt.Sprintf("%s destroys %s (%d left)", playerName(player), cardName, remaining),
	}
}

func NewRejectedEvent(turn int, phase string, player int, reason string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventRejected,
		Details: reason,
	}
}

func NewFatalEvent(turn int, phase string, reason string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Type:    EventFatal,
		Fatal:   true,
		Details: reason + " (start a new session to continue)",
	}
}

func NewWinEvent(turn int, phase string, winner int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  winner,
		Type:    EventWin,
		Details: fmt.Sprintf("%s wins!", playerName(winner)),
	}
}
