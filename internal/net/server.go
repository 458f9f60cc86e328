package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/peterkuimelis/sanctum/internal/duel"
	"github.com/peterkuimelis/sanctum/internal/log"
)

// Server hosts orchestrated sessions for JSON-lines clients. Each connection
// gets its own Duel against the shared engine.
type Server struct {
	Engine duel.Engine
	Duel   duel.DuelConfig // template for every session
	Addr   string
	Diag   *zap.Logger

	// Transcript, when set, receives every session's events as text lines.
	Transcript io.Writer

	transcriptOnce sync.Once
	transcript     zapcore.WriteSyncer
}

// sessionLogger returns the event logger for a new session.
func (s *Server) sessionLogger() log.EventLogger {
	if s.Transcript == nil {
		return log.NewMemoryLogger()
	}
	s.transcriptOnce.Do(func() {
		s.transcript = zapcore.Lock(zapcore.AddSync(s.Transcript))
	})
	return log.NewTextLogger(s.transcript)
}

func (s *Server) diag() *zap.Logger {
	if s.Diag == nil {
		return zap.NewNop()
	}
	return s.Diag
}

// Run listens on Addr and serves connections until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.diag().Info("waiting for players", zap.String("addr", ln.Addr().String()))
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.diag().Info("player connected", zap.String("remote", conn.RemoteAddr().String()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			if err := s.Serve(ctx, conn); err != nil {
				s.diag().Warn("session ended", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			}
		}()
	}
}

// RunLocal plays one session through a terminal REPL in this process.
func (s *Server) RunLocal(ctx context.Context, faction string, in io.Reader, out io.Writer) error {
	hostConn, serverConn := net.Pipe()
	defer hostConn.Close()
	defer serverConn.Close()

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.Serve(ctx, serverConn)
	}()
	go func() {
		client := NewClient(hostConn, in, out)
		if err := client.Join(faction); err != nil {
			errCh <- err
			return
		}
		errCh <- client.RunREPL(ctx)
	}()
	return <-errCh
}

// Serve runs one session over conn. The first message must be "join".
// Intents run one at a time on a worker goroutine; "trap" answers go
// straight to the pending prompt, since the worker is blocked on it.
func (s *Server) Serve(parent context.Context, conn net.Conn) error {
	stop := context.AfterFunc(parent, func() { conn.Close() })
	defer stop()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	dec := json.NewDecoder(conn)
	var join ClientMessage
	if err := dec.Decode(&join); err != nil {
		return fmt.Errorf("read join message: %w", err)
	}
	if join.Type != "join" {
		return fmt.Errorf("expected join message, got %q", join.Type)
	}

	cfg := s.Duel
	if join.Faction != "" {
		cfg.PlayerFaction = join.Faction
	}
	if join.OpponentFaction != "" {
		cfg.OpponentFaction = join.OpponentFaction
	}
	human := 0
	if cfg.Human == 1 {
		human = 1
	}
	ctrl := NewNetworkController(conn, human)
	cfg.Observers = append(slices.Clone(cfg.Observers), ctrl)
	cfg.Diag = s.diag().With(zap.String("remote", conn.RemoteAddr().String()))
	if cfg.Logger == nil {
		cfg.Logger = s.sessionLogger()
	}

	pd := duel.NewPromptDecider()
	sess := &session{
		duel:    duel.NewDuel(cfg, s.Engine, pd),
		ctrl:    ctrl,
		diag:    cfg.Diag,
		prompts: make(map[string]*duel.TrapPrompt),
	}
	go sess.forwardPrompts(ctx, pd)

	intents := make(chan ClientMessage, 16)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for m := range intents {
			sess.handle(ctx, m)
		}
	}()
	intents <- ClientMessage{Type: "new_game"}

	var readErr error
	for {
		var m ClientMessage
		if err := dec.Decode(&m); err != nil {
			if !errors.Is(err, io.EOF) && parent.Err() == nil {
				readErr = fmt.Errorf("read message: %w", err)
			}
			break
		}
		if m.Type == "quit" {
			break
		}
		if m.Type == "trap" {
			sess.answer(m)
			continue
		}
		select {
		case intents <- m:
		default:
			sess.ctrl.SendError(duel.ErrBusy)
		}
	}

	cancel()
	close(intents)
	<-workerDone
	ctrl.Close()
	return readErr
}

// session is one connection's duel and its outstanding trap prompts.
type session struct {
	duel *duel.Duel
	ctrl *NetworkController
	diag *zap.Logger

	mu      sync.Mutex
	prompts map[string]*duel.TrapPrompt
	last    string
}

func (s *session) forwardPrompts(ctx context.Context, pd *duel.PromptDecider) {
	for {
		select {
		case <-ctx.Done():
			return
		case pr := <-pd.Prompts():
			s.mu.Lock()
			s.prompts[pr.ID] = pr
			s.last = pr.ID
			s.mu.Unlock()
			s.ctrl.SendPrompt(pr)
		}
	}
}

// answer routes a trap reply to its prompt; an empty id means the latest.
func (s *session) answer(m ClientMessage) {
	s.mu.Lock()
	id := m.PromptID
	if id == "" {
		id = s.last
	}
	pr := s.prompts[id]
	delete(s.prompts, id)
	s.mu.Unlock()
	if pr == nil {
		s.ctrl.SendError(fmt.Errorf("%w: no trap prompt %q", duel.ErrNoPendingChoice, m.PromptID))
		return
	}

	dec := duel.TrapDecision{Activate: m.Activate}
	if m.Activate && m.Target != nil {
		t := FromTargetView(*m.Target, s.duel.Human())
		dec.Target = &t
	}
	pr.Respond(dec)
}

func (s *session) handle(ctx context.Context, m ClientMessage) {
	d := s.duel
	var err error
	switch m.Type {
	case "new_game":
		_, err = d.Start(ctx)
	case "play":
		_, err = d.PlayCard(ctx, m.CardID)
	case "attack":
		_, err = d.DeclareAttack(ctx, m.Attacker, m.Defender)
	case "pierce":
		_, err = d.SelectPierceTarget(ctx, m.Index)
	case "skip_pierce":
		err = d.SkipPierce()
	case "target":
		_, err = d.ResolveTarget(ctx, FromTargetView(TargetView{Player: m.Player, Index: m.Index}, d.Human()))
	case "cancel_target":
		err = d.CancelEffect()
	case "discard":
		_, err = d.Discard(ctx, m.Index)
	case "destroy":
		_, err = d.ForcedDestroy(ctx, m.Index)
	case "advance":
		_, err = d.AdvancePhase(ctx)
	case "run_opponent":
		_, err = d.RunOpponent(ctx)
	case "state":
		s.ctrl.SendState(d.Snapshot())
		return
	default:
		err = fmt.Errorf("unknown message type %q", m.Type)
	}
	if err != nil {
		s.diag.Debug("intent failed", zap.String("type", m.Type), zap.Error(err))
		// fatal errors already reached the client as a "fatal" message
		if !duel.IsFatal(err) {
			s.ctrl.SendError(err)
		}
	}
	s.ctrl.StateChanged(d.Interaction())
}
