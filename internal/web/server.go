package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/peterkuimelis/sanctum/internal/game"
)

//go:embed static
var staticFiles embed.FS

// CardCatalog supplies the engine's card list.
type CardCatalog interface {
	Cards(ctx context.Context) ([]*game.Card, error)
}

// CardInfo is the JSON representation of a card for the /api/cards endpoint.
type CardInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Faction     string   `json:"faction"`
	CardType    string   `json:"cardType"`
	Cost        int      `json:"cost"`
	Description string   `json:"description,omitempty"`
	ATK         int      `json:"atk,omitempty"`
	DEF         int      `json:"def,omitempty"`
	SPD         int      `json:"spd,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Server is the sanctum web UI server. Browsers reach the session server
// through the /ws proxy.
type Server struct {
	catalog  CardCatalog
	gameAddr string
	diag     *zap.Logger
	mux      *http.ServeMux
}

// NewServer creates a new web server proxying to the session server at
// gameAddr.
func NewServer(catalog CardCatalog, gameAddr string, diag *zap.Logger) *Server {
	if diag == nil {
		diag = zap.NewNop()
	}
	s := &Server{
		catalog:  catalog,
		gameAddr: gameAddr,
		diag:     diag,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) setupRoutes() {
	staticFS, _ := fs.Sub(staticFiles, "static")

	s.mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		f, err := staticFS.Open("index.html")
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.mux.HandleFunc("GET /api/cards", s.handleCards)
	s.mux.HandleFunc("GET /api/factions", s.handleFactions)

	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.catalog.Cards(r.Context())
	if err != nil {
		s.diag.Warn("card catalog unavailable", zap.Error(err))
		http.Error(w, "could not load cards from the engine", http.StatusBadGateway)
		return
	}
	infos := make([]CardInfo, 0, len(cards))
	for _, c := range cards {
		infos = append(infos, cardInfo(c))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

func cardInfo(c *game.Card) CardInfo {
	ci := CardInfo{
		ID:          c.ID,
		Name:        c.Name,
		Faction:     c.Faction,
		CardType:    c.Type.String(),
		Cost:        c.Cost,
		Description: c.Description,
	}
	if c.Type == game.CardTypeUnit {
		ci.ATK = c.Base.ATK
		ci.DEF = c.Base.DEF
		ci.SPD = c.Base.SPD
	}
	for _, k := range c.Keywords {
		ci.Keywords = append(ci.Keywords, k.String())
	}
	return ci
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow connections from any origin
	})
	if err != nil {
		s.diag.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer wsConn.CloseNow()

	ctx := r.Context()

	// Read initial connect message from browser
	_, connectData, err := wsConn.Read(ctx)
	if err != nil {
		s.diag.Debug("websocket read connect", zap.Error(err))
		return
	}

	var connectMsg struct {
		Type            string `json:"type"`
		Faction         string `json:"faction"`
		OpponentFaction string `json:"opponent_faction"`
	}
	if err := json.Unmarshal(connectData, &connectMsg); err != nil || connectMsg.Type != "connect" {
		wsConn.Close(websocket.StatusPolicyViolation, "expected connect message")
		return
	}

	// Open TCP connection to the session server
	var d net.Dialer
	tcpConn, err := d.DialContext(ctx, "tcp", s.gameAddr)
	if err != nil {
		s.diag.Warn("session server unreachable", zap.String("addr", s.gameAddr), zap.Error(err))
		errMsg, _ := json.Marshal(map[string]string{
			"type":  "error",
			"error": fmt.Sprintf("Could not connect to game server at %s: %v", s.gameAddr, err),
		})
		wsConn.Write(ctx, websocket.MessageText, errMsg)
		wsConn.Close(websocket.StatusNormalClosure, "connection failed")
		return
	}
	defer tcpConn.Close()

	joinMsg, _ := json.Marshal(map[string]string{
		"type":             "join",
		"faction":          connectMsg.Faction,
		"opponent_faction": connectMsg.OpponentFaction,
	})
	joinMsg = append(joinMsg, '\n')
	if _, err := tcpConn.Write(joinMsg); err != nil {
		s.diag.Warn("tcp write join", zap.Error(err))
		return
	}

	done := make(chan struct{})

	// TCP → WebSocket (server messages to browser)
	go func() {
		defer close(done)
		dec := json.NewDecoder(tcpConn)
		for {
			var msg json.RawMessage
			if err := dec.Decode(&msg); err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					s.diag.Debug("tcp read", zap.Error(err))
				}
				return
			}
			if err := wsConn.Write(ctx, websocket.MessageText, msg); err != nil {
				s.diag.Debug("websocket write", zap.Error(err))
				return
			}
		}
	}()

	// WebSocket → TCP (browser intents to server)
	go func() {
		defer tcpConn.Close()
		for {
			_, data, err := wsConn.Read(ctx)
			if err != nil {
				return
			}
			data = append(data, '\n')
			if _, err := tcpConn.Write(data); err != nil {
				s.diag.Debug("tcp write", zap.Error(err))
				return
			}
		}
	}()

	<-done
	wsConn.Close(websocket.StatusNormalClosure, "session ended")
}

// ListenAndServe serves HTTP on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	s.diag.Info("web UI listening", zap.String("addr", addr), zap.String("game_addr", s.gameAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
