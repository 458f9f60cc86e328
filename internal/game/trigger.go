package game

import (
	"encoding/json"
	"fmt"
)

// TriggerKind classifies what woke a trap.
type TriggerKind int

const (
	TriggerAttack TriggerKind = iota
	TriggerDeployment
	TriggerField
	TriggerTechnique
	TriggerReadiness
	TriggerCounter
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerAttack:
		return "attack"
	case TriggerDeployment:
		return "deployment"
	case TriggerField:
		return "field"
	case TriggerTechnique:
		return "technique"
	case TriggerReadiness:
		return "readiness"
	case TriggerCounter:
		return "counterTrigger"
	default:
		return "unknown"
	}
}

// ParseTriggerKind maps the engine's trigger names onto a TriggerKind.
func ParseTriggerKind(s string) (TriggerKind, error) {
	switch s {
	case "attack_declared", "attack":
		return TriggerAttack, nil
	case "unit_deployed", "deployment", "deploy_trap_trigger":
		return TriggerDeployment, nil
	case "field_activated", "field", "field_trap_trigger":
		return TriggerField, nil
	case "technique_played", "technique", "technique_trap_trigger":
		return TriggerTechnique, nil
	case "unit_readied", "readiness", "ready_trap_trigger":
		return TriggerReadiness, nil
	case "trap_activated", "counter_sigil_trigger", "counterTrigger":
		return TriggerCounter, nil
	default:
		return 0, fmt.Errorf("unknown trigger kind %q", s)
	}
}

// Target addresses one battlefield slot.
type Target struct {
	Player int
	Index  int
}

func (t Target) String() string {
	return fmt.Sprintf("%s slot %d", PlayerName(t.Player), t.Index+1)
}

// Trigger is an engine-reported trap window awaiting the owner's decision.
type Trigger struct {
	Owner          int
	Slot           int
	Card           *Card
	Kind           TriggerKind
	Message        string
	Targets        []Target
	RequiresTarget bool
	Data           json.RawMessage // echoed back to the engine unchanged
}

// CardName returns the trap's name, or a placeholder when the engine did not
// describe the card.
func (t *Trigger) CardName() string {
	if t.Card == nil || t.Card.Name == "" {
		return fmt.Sprintf("trap in slot %d", t.Slot+1)
	}
	return t.Card.Name
}

// NeedsChoice reports whether the owner must pick among several targets.
func (t *Trigger) NeedsChoice() bool {
	return len(t.Targets) > 1
}

// AutoTarget returns the single legal target when there is exactly one.
func (t *Trigger) AutoTarget() *Target {
	if len(t.Targets) != 1 {
		return nil
	}
	tg := t.Targets[0]
	return &tg
}

// HasTarget reports whether tg is one of the trigger's legal targets.
func (t *Trigger) HasTarget(tg Target) bool {
	for _, c := range t.Targets {
		if c == tg {
			return true
		}
	}
	return false
}
