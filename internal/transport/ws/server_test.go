package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelsim/internal/config"
	"voxelsim/internal/game"
)

type harness struct {
	srv    *Server
	engine *game.Engine
	url    string
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	cfg := config.Default()
	cfg.World.Seed = 5
	cfg.World.MaxHeight = 64
	cfg.World.LoadRadius = 1
	cfg.World.GenerateWorkers = 2
	cfg.Server.TickHz = 100

	srv := NewServer(opts, logger)
	e, err := game.NewEngine(cfg, nil, srv, logger)
	if err != nil {
		t.Fatal(err)
	}
	srv.Bind(e)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		cancel()
		<-done
		e.Shutdown()
	})
	return &harness{srv: srv, engine: e, url: "ws" + strings.TrimPrefix(hs.URL, "http")}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads messages until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, what string, match func(typ string, raw []byte) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		base, err := decodeBase(raw)
		if err != nil {
			t.Fatalf("bad frame %s: %v", raw, err)
		}
		if match(base.Type, raw) {
			return
		}
	}
}

func join(t *testing.T, h *harness) (*websocket.Conn, WelcomeMsg) {
	t.Helper()
	conn := dial(t, h.url)
	sendJSON(t, conn, HelloMsg{Type: TypeHello, Name: "tester"})
	var w WelcomeMsg
	readUntil(t, conn, "WELCOME", func(typ string, raw []byte) bool {
		if typ != TypeWelcome {
			return false
		}
		return json.Unmarshal(raw, &w) == nil
	})
	return conn, w
}

func waitChunks(t *testing.T, conn *websocket.Conn, n int) {
	t.Helper()
	seen := make(map[[2]int]bool)
	readUntil(t, conn, "initial chunks", func(typ string, raw []byte) bool {
		if typ == TypeChunk {
			var c ChunkMsg
			if err := json.Unmarshal(raw, &c); err == nil {
				seen[[2]int{c.CX, c.CZ}] = true
			}
		}
		return len(seen) >= n
	})
}

func TestHelloWelcomeAndChunks(t *testing.T) {
	h := newHarness(t, Options{EditRate: 10, EditBurst: 10})
	conn, w := join(t, h)
	if _, err := uuid.Parse(w.SessionID); err != nil {
		t.Errorf("session id %q: %v", w.SessionID, err)
	}
	if w.ChunkSize != 16 || w.MaxHeight != 64 || w.Seed != 5 {
		t.Errorf("welcome = %+v", w)
	}
	waitChunks(t, conn, 9)
}

func TestRejectsMissingHello(t *testing.T) {
	h := newHarness(t, Options{})
	conn := dial(t, h.url)
	sendJSON(t, conn, ObserveMsg{Type: TypeObserve})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("err = %v, want policy violation close", err)
	}
}

func TestPlaceBroadcastsChunk(t *testing.T) {
	h := newHarness(t, Options{EditRate: 10, EditBurst: 10})
	conn, _ := join(t, h)
	waitChunks(t, conn, 9)

	sendJSON(t, conn, PlaceMsg{Type: TypePlace, Pos: &[3]int{2, 62, 2}, Block: "glowstone"})
	readUntil(t, conn, "CHUNK with glowstone", func(typ string, raw []byte) bool {
		if typ != TypeChunk {
			return false
		}
		var c ChunkMsg
		if json.Unmarshal(raw, &c) != nil || c.CX != 0 || c.CZ != 0 {
			return false
		}
		for _, g := range c.Groups {
			if g.Name == "glowstone" && len(g.Positions) == 1 && g.Positions[0] == [3]int{2, 62, 2} {
				return true
			}
		}
		return false
	})
}

func TestObserveReleasesChunks(t *testing.T) {
	h := newHarness(t, Options{})
	conn, _ := join(t, h)
	waitChunks(t, conn, 9)

	sendJSON(t, conn, ObserveMsg{Type: TypeObserve, Pos: [3]float32{160, 40, 0}})
	released := 0
	readUntil(t, conn, "RELEASE", func(typ string, raw []byte) bool {
		if typ == TypeRelease {
			released++
		}
		return released == 9
	})
}

func TestEditErrors(t *testing.T) {
	h := newHarness(t, Options{EditRate: 0, EditBurst: 2})
	conn, _ := join(t, h)

	expect := func(code string) {
		t.Helper()
		readUntil(t, conn, "ERROR "+code, func(typ string, raw []byte) bool {
			if typ != TypeError {
				return false
			}
			var e ErrorMsg
			return json.Unmarshal(raw, &e) == nil && e.Code == code
		})
	}

	sendJSON(t, conn, map[string]any{"type": "TELEPORT"})
	expect(CodeBadMessage)

	sendJSON(t, conn, PlaceMsg{Type: TypePlace, Pos: &[3]int{0, 10, 0}, Block: "obsidian"})
	expect(CodeUnknownBlock)

	sendJSON(t, conn, FluidMsg{Type: TypeFluid, Pos: [3]int{0, 10, 0}, Block: "stone"})
	expect(CodeRejected)

	// burst of two is spent
	sendJSON(t, conn, PlaceMsg{Type: TypePlace, Pos: &[3]int{0, 10, 0}, Block: "stone"})
	expect(CodeRateLimited)
}
