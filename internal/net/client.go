package net

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/peterkuimelis/sanctum/internal/log"
)

// Client connects to a session server and provides a terminal REPL.
type Client struct {
	conn net.Conn
	in   io.Reader
	out  io.Writer
	enc  *json.Encoder

	state  *StateView
	inter  *InteractionView
	prompt *TrapPromptView
}

var errNoCommand = errors.New("no command")

// NewClient wraps an established connection.
func NewClient(conn net.Conn, in io.Reader, out io.Writer) *Client {
	return &Client{conn: conn, in: in, out: out, enc: json.NewEncoder(conn)}
}

// Connect connects to a server, joins with the given faction, and runs the
// REPL on the terminal.
func Connect(ctx context.Context, addr, faction string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	client := NewClient(conn, os.Stdin, os.Stdout)
	if err := client.Join(faction); err != nil {
		return err
	}
	fmt.Println("Connected! Waiting for the session to start...")
	return client.RunREPL(ctx)
}

// Join sends the handshake.
func (c *Client) Join(faction string) error {
	if err := c.enc.Encode(ClientMessage{Type: "join", Faction: faction}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	return nil
}

// RunREPL renders server messages and turns typed commands into intents
// until the user quits or the connection drops.
func (c *Client) RunREPL(ctx context.Context) error {
	msgs := make(chan ServerMessage)
	readErr := make(chan error, 1)
	go func() {
		dec := json.NewDecoder(c.conn)
		for {
			var msg ServerMessage
			if err := dec.Decode(&msg); err != nil {
				readErr <- err
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("read message: %w", err)
		case msg := <-msgs:
			c.handle(msg)
		case line, ok := <-lines:
			if !ok {
				_ = c.enc.Encode(ClientMessage{Type: "quit"})
				return nil
			}
			msg, err := c.parseCommand(line)
			if errors.Is(err, errNoCommand) {
				continue
			}
			if err != nil {
				fmt.Fprintln(c.out, err)
				continue
			}
			if err := c.enc.Encode(msg); err != nil {
				return fmt.Errorf("send %s: %w", msg.Type, err)
			}
			if msg.Type == "quit" {
				return nil
			}
		}
	}
}

func (c *Client) handle(msg ServerMessage) {
	switch msg.Type {
	case "notify":
		c.renderEvent(msg.Event)

	case "state":
		c.state = msg.State
		c.renderState(msg.State)

	case "interaction":
		c.state = msg.State
		c.inter = msg.Interaction
		if c.inter != nil && c.inter.Mode != "AwaitingTrapDecision" {
			c.prompt = nil
		}
		c.renderState(msg.State)
		c.renderInteraction(msg.Interaction)

	case "choose_trap":
		c.prompt = msg.Trap
		c.renderTrapPrompt(msg.Trap)

	case "game_over":
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, "═══════════════════════════════════")
		fmt.Fprintln(c.out, "          GAME OVER")
		fmt.Fprintln(c.out, "═══════════════════════════════════")
		fmt.Fprintln(c.out, msg.Result)
		fmt.Fprintln(c.out, "═══════════════════════════════════")
		fmt.Fprintln(c.out, "Type 'new' for another game or 'quit'.")

	case "fatal":
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, "!! SESSION HALTED !!")
		fmt.Fprintln(c.out, msg.Error)
		fmt.Fprintln(c.out, "Type 'new' to start a new session.")

	case "error":
		fmt.Fprintf(c.out, "! %s\n", msg.Error)
	}
}

func (c *Client) renderEvent(ev *EventView) {
	if ev == nil {
		return
	}
	fmt.Fprintln(c.out, log.FormatEvent(log.GameEvent{
		Turn:    ev.Turn,
		Phase:   ev.Phase,
		Player:  ev.Player,
		Card:    ev.Card,
		Details: ev.Details,
		Fatal:   ev.Fatal,
	}))
}

func (c *Client) renderState(sv *StateView) {
	if sv == nil {
		return
	}
	w := c.out

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════╗")

	opp := sv.Opponent
	fmt.Fprintf(w, "║  OPPONENT  Energy: %d  Control loss: %d  Hand: %d  Deck: %d  Discard: %d\n",
		opp.Energy, opp.ControlLoss, opp.HandCount, opp.DeckCount, opp.DiscardCount)
	fmt.Fprintf(w, "║  Traps:  %s\n", formatTraps(opp.Traps))
	if opp.Field != "" {
		fmt.Fprintf(w, "║  Field:  [%s]\n", opp.Field)
	}
	fmt.Fprintf(w, "║  Units:  %s\n", formatUnits(opp.Battlefield))

	fmt.Fprintln(w, "║──────────────────────────────────────────────────────")

	you := sv.You
	fmt.Fprintf(w, "║  Units:  %s\n", formatUnits(you.Battlefield))
	if you.Field != "" {
		fmt.Fprintf(w, "║  Field:  [%s]\n", you.Field)
	}
	fmt.Fprintf(w, "║  Traps:  %s\n", formatTraps(you.Traps))
	fmt.Fprintf(w, "║  YOU  Energy: %d  Control loss: %d  Hand: %d  Deck: %d  Discard: %d\n",
		you.Energy, you.ControlLoss, you.HandCount, you.DeckCount, you.DiscardCount)
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════╝")

	turnInfo := fmt.Sprintf("Turn %d | %s", sv.Turn, sv.Phase)
	if sv.IsYourTurn {
		turnInfo += " | Your turn"
	} else {
		turnInfo += " | Opponent's turn"
	}
	fmt.Fprintln(w, turnInfo)

	if len(you.Hand) > 0 {
		fmt.Fprintf(w, "\nHand: ")
		for i, cv := range you.Hand {
			fmt.Fprintf(w, "[%d] %s (%d)  ", i+1, cv.Name, cv.Cost)
		}
		fmt.Fprintln(w)
	}
}

func formatUnits(slots [5]UnitView) string {
	parts := make([]string, len(slots))
	for i, u := range slots {
		switch {
		case u.Empty:
			parts[i] = "[ ]"
		case u.Exhausted:
			parts[i] = fmt.Sprintf("[%s %d/%d/%d z]", u.Name, u.ATK, u.DEF, u.SPD)
		default:
			parts[i] = fmt.Sprintf("[%s %d/%d/%d]", u.Name, u.ATK, u.DEF, u.SPD)
		}
	}
	return strings.Join(parts, " ")
}

func formatTraps(slots [3]TrapView) string {
	parts := make([]string, len(slots))
	for i, t := range slots {
		switch {
		case t.Empty:
			parts[i] = "[ ]"
		case t.Name != "":
			parts[i] = fmt.Sprintf("[SET:%s]", t.Name)
		default:
			parts[i] = "[SET]"
		}
	}
	return strings.Join(parts, " ")
}

func (c *Client) renderInteraction(in *InteractionView) {
	if in == nil {
		return
	}
	fmt.Fprintf(c.out, "\n%s\n", in.Prompt)
	for i, t := range in.Targets {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, formatTarget(t))
	}
	switch in.Mode {
	case "Idle":
		fmt.Fprintln(c.out, "Commands: play <n>, attack <unit> <enemy>, advance, help")
	case "SelectingPierceTarget":
		fmt.Fprintln(c.out, "Pick a number, or 'skip'")
	case "SelectingEffectTarget":
		fmt.Fprintln(c.out, "Pick a number, or 'cancel'")
	case "AwaitingDiscardChoice", "AwaitingDestroyChoice":
		fmt.Fprintln(c.out, "Pick a number")
	}
}

func (c *Client) renderTrapPrompt(tp *TrapPromptView) {
	if tp == nil {
		return
	}
	fmt.Fprintf(c.out, "\nTrap window: %s (%s) %s\n", tp.Name, tp.Kind, tp.Message)
	for i, t := range tp.Targets {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, formatTarget(t))
	}
	if len(tp.Targets) > 1 {
		fmt.Fprint(c.out, "Activate? (y <n> / n): ")
	} else {
		fmt.Fprint(c.out, "Activate? (y/n): ")
	}
}

func formatTarget(t TargetView) string {
	side := "your"
	if t.Player == 1 {
		side = "enemy"
	}
	if t.Name == "" {
		return fmt.Sprintf("%s slot %d", side, t.Index+1)
	}
	return fmt.Sprintf("%s %s (slot %d)", side, t.Name, t.Index+1)
}

func (c *Client) renderHelp() {
	fmt.Fprintln(c.out, `Commands:
  play <n>              play the nth card in hand
  attack <unit> <enemy> attack with your unit slot at an enemy slot (1-5)
  advance | a           advance to the next phase
  <n>                   pick the nth listed target
  skip                  skip a pierce
  cancel                cancel a technique's target choice
  y [n] | n             answer a trap window
  run                   run the opponent's turn
  state                 redraw the board
  new                   start a new session
  quit`)
}

// parseCommand turns one input line into an intent for the current mode.
func (c *Client) parseCommand(line string) (ClientMessage, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return ClientMessage{}, errNoCommand
	}
	args := fields[1:]

	switch fields[0] {
	case "help", "?":
		c.renderHelp()
		return ClientMessage{}, errNoCommand
	case "quit", "exit":
		return ClientMessage{Type: "quit"}, nil
	case "new":
		return ClientMessage{Type: "new_game"}, nil
	case "state":
		return ClientMessage{Type: "state"}, nil
	case "run":
		return ClientMessage{Type: "run_opponent"}, nil
	case "a", "advance":
		return ClientMessage{Type: "advance"}, nil
	case "skip":
		return ClientMessage{Type: "skip_pierce"}, nil
	case "cancel":
		return ClientMessage{Type: "cancel_target"}, nil

	case "play":
		n, err := oneNumber(args)
		if err != nil {
			return ClientMessage{}, err
		}
		if c.state == nil || n < 1 || n > len(c.state.You.Hand) {
			return ClientMessage{}, fmt.Errorf("no card %d in hand", n)
		}
		return ClientMessage{Type: "play", CardID: c.state.You.Hand[n-1].ID}, nil

	case "attack":
		if len(args) != 2 {
			return ClientMessage{}, errors.New("usage: attack <unit> <enemy>")
		}
		a, errA := strconv.Atoi(args[0])
		d, errD := strconv.Atoi(args[1])
		if errA != nil || errD != nil || a < 1 || a > 5 || d < 1 || d > 5 {
			return ClientMessage{}, errors.New("slots are numbered 1-5")
		}
		return ClientMessage{Type: "attack", Attacker: a - 1, Defender: d - 1}, nil

	case "y", "yes":
		if c.prompt == nil {
			return ClientMessage{}, errors.New("no trap window is open")
		}
		msg := ClientMessage{Type: "trap", PromptID: c.prompt.ID, Activate: true}
		if len(args) > 0 {
			n, err := oneNumber(args)
			if err != nil {
				return ClientMessage{}, err
			}
			if n < 1 || n > len(c.prompt.Targets) {
				return ClientMessage{}, fmt.Errorf("pick a target between 1 and %d", len(c.prompt.Targets))
			}
			t := c.prompt.Targets[n-1]
			msg.Target = &t
		}
		return msg, nil

	case "n", "no":
		if c.prompt == nil {
			return ClientMessage{}, errors.New("no trap window is open")
		}
		return ClientMessage{Type: "trap", PromptID: c.prompt.ID}, nil
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return ClientMessage{}, fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}
	return c.pickTarget(n)
}

// pickTarget maps a bare number onto the current mode's target list.
func (c *Client) pickTarget(n int) (ClientMessage, error) {
	if c.inter == nil || len(c.inter.Targets) == 0 {
		return ClientMessage{}, errors.New("nothing to pick right now")
	}
	if n < 1 || n > len(c.inter.Targets) {
		return ClientMessage{}, fmt.Errorf("pick a number between 1 and %d", len(c.inter.Targets))
	}
	t := c.inter.Targets[n-1]
	switch c.inter.Mode {
	case "SelectingPierceTarget":
		return ClientMessage{Type: "pierce", Index: t.Index}, nil
	case "SelectingEffectTarget":
		return ClientMessage{Type: "target", Player: t.Player, Index: t.Index}, nil
	case "AwaitingDiscardChoice":
		return ClientMessage{Type: "discard", Index: t.Index}, nil
	case "AwaitingDestroyChoice":
		return ClientMessage{Type: "destroy", Index: t.Index}, nil
	default:
		return ClientMessage{}, errors.New("nothing to pick right now")
	}
}

func oneNumber(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", args[0])
	}
	return n, nil
}
