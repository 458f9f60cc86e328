package mcp

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/peterkuimelis/sanctum/internal/duel"
	"github.com/peterkuimelis/sanctum/internal/game"
	"github.com/peterkuimelis/sanctum/internal/log"
	"github.com/peterkuimelis/sanctum/internal/net"
)

// Tools plays the human seat of one game session at a time.
type Tools struct {
	Engine duel.Engine
	Duel   duel.DuelConfig // template for start_game

	mu      sync.Mutex // one tool call at a time
	session *GameSession
}

// RegisterTools adds all game tools to the MCP server.
func (t *Tools) RegisterTools(s *server.MCPServer) {
	s.AddTool(startGameTool(), t.handleStartGame)
	s.AddTool(getGameStateTool(), t.handleGetGameState)
	s.AddTool(playCardTool(), t.handlePlayCard)
	s.AddTool(resolveTargetTool(), t.handleResolveTarget)
	s.AddTool(cancelTargetTool(), t.handleCancelTarget)
	s.AddTool(declareAttackTool(), t.handleDeclareAttack)
	s.AddTool(selectPierceTargetTool(), t.handleSelectPierceTarget)
	s.AddTool(skipPierceTool(), t.handleSkipPierce)
	s.AddTool(decideTrapTool(), t.handleDecideTrap)
	s.AddTool(discardTool(), t.handleDiscard)
	s.AddTool(forcedDestroyTool(), t.handleForcedDestroy)
	s.AddTool(advancePhaseTool(), t.handleAdvancePhase)
	s.AddTool(runOpponentTool(), t.handleRunOpponent)
	s.AddTool(getTranscriptTool(), t.handleGetTranscript)
}

// Close abandons the current session.
func (t *Tools) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		t.session.Close()
		t.session = nil
	}
}

// --- Tool definitions ---

const trapNote = " If a trap window of yours opens, the response carries it under 'trap'; answer with decide_trap."

func startGameTool() mcp.Tool {
	return mcp.NewTool("start_game",
		mcp.WithDescription("Start a new Seventh Sanctum session against the autonomous opponent and return the opening state. "+
			"Any running session is abandoned."+trapNote),
		mcp.WithString("player_faction", mcp.Description("Your faction (default from configuration, e.g. Skyforge)")),
		mcp.WithString("opponent_faction", mcp.Description("The opponent's faction (e.g. Miasma)")),
	)
}

func getGameStateTool() mcp.Tool {
	return mcp.NewTool("get_game_state",
		mcp.WithDescription("Get the current state, accumulated events, interaction mode and any pending trap decision. Read-only."),
	)
}

func playCardTool() mcp.Tool {
	return mcp.NewTool("play_card",
		mcp.WithDescription("Play a card from your hand by id. Techniques that need a target switch the interaction to SelectingEffectTarget."+trapNote),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("The card's id from state.you.hand")),
	)
}

func resolveTargetTool() mcp.Tool {
	return mcp.NewTool("resolve_target",
		mcp.WithDescription("Choose the target for the technique awaiting one."),
		mcp.WithString("side", mcp.Required(), mcp.Enum("you", "opponent"), mcp.Description("Whose battlefield the target is on")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("0-based battlefield slot")),
	)
}

func cancelTargetTool() mcp.Tool {
	return mcp.NewTool("cancel_target",
		mcp.WithDescription("Abandon the technique awaiting a target."),
	)
}

func declareAttackTool() mcp.Tool {
	return mcp.NewTool("declare_attack",
		mcp.WithDescription("Attack an enemy slot with one of your ready units during your combat phase."+trapNote),
		mcp.WithNumber("attacker", mcp.Required(), mcp.Description("0-based slot of your attacking unit")),
		mcp.WithNumber("defender", mcp.Required(), mcp.Description("0-based slot of the enemy unit")),
	)
}

func selectPierceTargetTool() mcp.Tool {
	return mcp.NewTool("select_pierce_target",
		mcp.WithDescription("Spend an offered pierce on an enemy unit."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("0-based enemy slot")),
	)
}

func skipPierceTool() mcp.Tool {
	return mcp.NewTool("skip_pierce",
		mcp.WithDescription("Decline an offered pierce."),
	)
}

func decideTrapTool() mcp.Tool {
	return mcp.NewTool("decide_trap",
		mcp.WithDescription("Answer the pending trap window, then wait for the next window or for the operation to finish."),
		mcp.WithBoolean("activate", mcp.Required(), mcp.Description("true to spring the trap")),
		mcp.WithString("target_side", mcp.Enum("you", "opponent"), mcp.Description("Target side when the trap offers a choice")),
		mcp.WithNumber("target_index", mcp.Description("0-based target slot when the trap offers a choice")),
	)
}

func discardTool() mcp.Tool {
	return mcp.NewTool("discard",
		mcp.WithDescription("Discard a card from your hand while a discard is owed."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("0-based hand index")),
	)
}

func forcedDestroyTool() mcp.Tool {
	return mcp.NewTool("forced_destroy",
		mcp.WithDescription("Destroy one of your own units while a forced destruction is owed."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("0-based slot of your unit")),
	)
}

func advancePhaseTool() mcp.Tool {
	return mcp.NewTool("advance_phase",
		mcp.WithDescription("Advance to the next phase. Ending your turn runs the opponent's turn before returning."+trapNote),
	)
}

func runOpponentTool() mcp.Tool {
	return mcp.NewTool("run_opponent",
		mcp.WithDescription("Run the opponent's turn when it did not start automatically."+trapNote),
	)
}

func getTranscriptTool() mcp.Tool {
	return mcp.NewTool("get_transcript",
		mcp.WithDescription("Get the full event log of the current session as text, one line per event. Read-only."),
	)
}

// --- Tool handlers ---

func (t *Tools) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := t.Duel
	if f := request.GetString("player_faction", ""); f != "" {
		cfg.PlayerFaction = f
	}
	if f := request.GetString("opponent_faction", ""); f != "" {
		cfg.OpponentFaction = f
	}
	if t.session != nil {
		t.session.Close()
	}
	sess := NewGameSession(cfg, t.Engine)
	t.session = sess

	resp, err := sess.run(ctx, func(ctx context.Context) error {
		_, err := sess.duel.Start(ctx)
		return err
	})
	return result(resp, err)
}

func (t *Tools) handleGetGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return mcp.NewToolResultError("No game is running. Use start_game first."), nil
	}
	return result(t.session.response(nil), nil)
}

func (t *Tools) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return mcp.NewToolResultError("No game is running. Use start_game first."), nil
	}
	return mcp.NewToolResultText(log.FormatAll(t.session.duel.Logger().Events())), nil
}

func (t *Tools) handlePlayCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID := request.GetString("card_id", "")
	if cardID == "" {
		return mcp.NewToolResultError("card_id is required"), nil
	}
	return t.operate(ctx, func(ctx context.Context, d *duel.Duel) error {
		_, err := d.PlayCard(ctx, cardID)
		return err
	})
}

func (t *Tools) handleResolveTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tv, msg := targetArg(request.GetString("side", ""), request.GetInt("index", -1))
	if msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	return t.operate(ctx, func(ctx context.Context, d *duel.Duel) error {
		_, err := d.ResolveTarget(ctx, net.FromTargetView(tv, d.Human()))
		return err
	})
}

func (t *Tools) handleCancelTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.operate(ctx, func(_ context.Context, d *duel.Duel) error {
		return d.CancelEffect()
	})
}

func (t *Tools) handleDeclareAttack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	attacker := request.GetInt("attacker", -1)
	defender := request.GetInt("defender", -1)
	if !validSlot(attacker) || !validSlot(defender) {
		return mcp.NewToolResultErrorf("attacker and defender must be slots 0-%d", game.BattlefieldSize-1), nil
	}
	return t.operate(ctx, func(ctx context.Context, d *duel.Duel) error {
		_, err := d.DeclareAttack(ctx, attacker, defender)
		return err
	})
}

func (t *Tools) handleSelectPierceTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index := request.GetInt("index", -1)
	if !validSlot(index) {
		return mcp.NewToolResultErrorf("index must be a slot 0-%d", game.BattlefieldSize-1), nil
	}
	return t.operate(ctx, func(ctx context.Context, d *duel.Duel) error {
		_, err := d.SelectPierceTarget(ctx, index)
		return err
	})
}

func (t *Tools) handleSkipPierce(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.operate(ctx, func(_ context.Context, d *duel.Duel) error {
		return d.SkipPierce()
	})
}

func (t *Tools) handleDecideTrap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return mcp.NewToolResultError("No game is running. Use start_game first."), nil
	}

	dec := duel.TrapDecision{Activate: request.GetBool("activate", false)}
	if side := request.GetString("target_side", ""); side != "" && dec.Activate {
		tv, msg := targetArg(side, request.GetInt("target_index", -1))
		if msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		target := net.FromTargetView(tv, t.session.human)
		dec.Target = &target
	}
	resp, err := t.session.decide(ctx, dec)
	return result(resp, err)
}

func (t *Tools) handleDiscard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index := request.GetInt("index", -1)
	if index < 0 {
		return mcp.NewToolResultError("index must be a hand index >= 0"), nil
	}
	return t.operate(ctx, func(ctx context.Context, d *duel.Duel) error {
		_, err := d.Discard(ctx, index)
		return err
	})
}

func (t *Tools) handleForcedDestroy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index := request.GetInt("index", -1)
	if !validSlot(index) {
		return mcp.NewToolResultErrorf("index must be a slot 0-%d", game.BattlefieldSize-1), nil
	}
	return t.operate(ctx, func(ctx context.Context, d *duel.Duel) error {
		_, err := d.ForcedDestroy(ctx, index)
		return err
	})
}

func (t *Tools) handleAdvancePhase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.operate(ctx, func(ctx context.Context, d *duel.Duel) error {
		_, err := d.AdvancePhase(ctx)
		return err
	})
}

func (t *Tools) handleRunOpponent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.operate(ctx, func(ctx context.Context, d *duel.Duel) error {
		_, err := d.RunOpponent(ctx)
		return err
	})
}

// operate runs op against the current session's duel.
func (t *Tools) operate(ctx context.Context, op func(context.Context, *duel.Duel) error) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return mcp.NewToolResultError("No game is running. Use start_game first."), nil
	}
	sess := t.session
	resp, err := sess.run(ctx, func(ctx context.Context) error {
		return op(ctx, sess.duel)
	})
	return result(resp, err)
}

// result turns a session outcome into a tool result. Engine and local
// rejections travel inside the response; only tool misuse is an error result.
func result(resp *ToolResponse, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func validSlot(i int) bool {
	return i >= 0 && i < game.BattlefieldSize
}

func targetArg(side string, index int) (net.TargetView, string) {
	var tv net.TargetView
	switch side {
	case "you":
		tv.Player = 0
	case "opponent":
		tv.Player = 1
	default:
		return tv, "side must be 'you' or 'opponent'"
	}
	if !validSlot(index) {
		return tv, "index must be a slot 0-4"
	}
	tv.Index = index
	return tv, ""
}
