package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestMemoryLoggerSequence(t *testing.T) {
	l := NewMemoryLogger()
	l.Log(NewPhaseChangeEvent(1, "deploy"))
	l.Log(NewRejectedEvent(1, "deploy", 0, "Not enough energy"))
	l.Log(NewPhaseChangeEvent(1, "combat"))

	events := l.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != i+1 {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
	}
	if got := len(l.EventsOfType(EventPhaseChange)); got != 2 {
		t.Errorf("expected 2 phase changes, got %d", got)
	}
	if last := l.LastEvent(); last.Phase != "combat" {
		t.Errorf("expected last event in combat, got %q", last.Phase)
	}
	if since := l.Since(1); len(since) != 2 {
		t.Errorf("expected 2 events after seq 1, got %d", len(since))
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	l := NewMemoryLogger()
	l.Log(NewWinEvent(5, "end", 0))
	events := l.Events()
	events[0].Details = "mutated"
	if l.LastEvent().Details == "mutated" {
		t.Fatal("Events must not expose the backing slice")
	}
}

func TestTextLoggerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf)
	l.Log(NewAttackDeclareEvent(2, "combat", 0, "Sentry", "Husk"))
	l.Log(NewFatalEvent(2, "combat", "engine response missing state"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "P1 declares attack: Sentry → Husk") {
		t.Errorf("unexpected attack line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "!! FATAL: engine response missing state") {
		t.Errorf("fatal line not marked: %q", lines[1])
	}
	if strings.Contains(lines[0], "FATAL") {
		t.Errorf("normal line marked fatal: %q", lines[0])
	}
	if got := len(l.Events()); got != 2 {
		t.Errorf("expected 2 recorded events, got %d", got)
	}
}

func TestFormatEventPadsPhase(t *testing.T) {
	got := FormatEvent(GameEvent{Turn: 3, Phase: "end", Details: "x"})
	want := "T3  end             | x"
	if got != want {
		t.Errorf("FormatEvent = %q, want %q", got, want)
	}
}

func TestCleanupRequiredDetails(t *testing.T) {
	e := NewCleanupRequiredEvent(4, "end", 1, 2, 1)
	if !strings.Contains(e.Details, "P2 must discard 2 and destroy 1 unit(s)") {
		t.Errorf("unexpected details: %q", e.Details)
	}
}
