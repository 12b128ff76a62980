// Package ws exposes the engine over websockets: clients steer streaming
// and edit blocks, and receive the exposed-block lists of every chunk the
// engine remeshes.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"voxelsim/internal/game"
	"voxelsim/internal/meshing"
	"voxelsim/internal/voxel"
)

// Options configures per-session behaviour.
type Options struct {
	// EditRate and EditBurst bound PLACE and FLUID messages per session.
	EditRate  float64
	EditBurst int
	// QueueSize is the outbound message buffer; a session that falls this
	// far behind is disconnected.
	QueueSize int
}

type session struct {
	id      string
	name    string
	out     chan []byte
	limiter *rate.Limiter
	cancel  context.CancelFunc
}

// Server is both the websocket endpoint and the engine's render boundary.
// Bind must be called before Handler serves requests.
type Server struct {
	engine *game.Engine
	log    *log.Logger
	opts   Options

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

func NewServer(opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	return &Server{
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: make(map[string]*session),
	}
}

// Bind attaches the engine the sessions talk to.
func (s *Server) Bind(e *game.Engine) { s.engine = e }

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// UploadChunk broadcasts a remeshed chunk. Called on the engine goroutine.
func (s *Server) UploadChunk(m meshing.ChunkMesh) {
	s.broadcast(chunkMsg(m))
}

// ReleaseDrawables tells clients to drop an evicted chunk. Called on the
// engine goroutine.
func (s *Server) ReleaseDrawables(key voxel.ChunkKey) {
	s.broadcast(ReleaseMsg{Type: TypeRelease, CX: key.CX, CZ: key.CZ})
}

func (s *Server) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("ws: marshal %T: %v", v, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		s.enqueue(sess, b)
	}
}

// enqueue never blocks the engine; a full queue drops the session.
func (s *Server) enqueue(sess *session, b []byte) {
	select {
	case sess.out <- b:
	default:
		s.log.Printf("ws: session %s (%s) too slow, disconnecting", sess.id, sess.name)
		sess.cancel()
	}
}

func (s *Server) send(sess *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("ws: marshal %T: %v", v, err)
		return
	}
	s.enqueue(sess, b)
}

func (s *Server) sendError(sess *session, code, format string, args ...any) {
	s.send(sess, ErrorMsg{Type: TypeError, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, ok := s.readHello(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sess := &session{
			id:      uuid.NewString(),
			name:    hello.Name,
			out:     make(chan []byte, s.opts.QueueSize),
			limiter: rate.NewLimiter(rate.Limit(s.opts.EditRate), s.opts.EditBurst),
			cancel:  cancel,
		}
		if err := s.join(ctx, sess); err != nil {
			s.log.Printf("ws: join %s: %v", hello.Name, err)
			return
		}
		defer s.leave(sess)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					_ = conn.Close()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.dispatch(ctx, sess, msg)
		}
	}
}

func (s *Server) readHello(conn *websocket.Conn) (HelloMsg, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return HelloMsg{}, false
	}
	var hello HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return HelloMsg{}, false
	}
	if hello.Name == "" {
		hello.Name = "client"
	}
	return hello, true
}

// join registers the session on the engine goroutine and queues WELCOME and
// the current state of every loaded chunk ahead of any later broadcast.
func (s *Server) join(ctx context.Context, sess *session) error {
	return s.engine.Do(ctx, func(e *game.Engine) error {
		cfg := e.Config()
		s.send(sess, WelcomeMsg{
			Type:      TypeWelcome,
			SessionID: sess.id,
			ChunkSize: cfg.World.ChunkSize,
			MaxHeight: cfg.World.MaxHeight,
			Seed:      cfg.World.Seed,
			Dimension: cfg.World.Dimension,
		})
		for _, m := range e.Meshes() {
			s.send(sess, chunkMsg(m))
		}
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		s.log.Printf("ws: session %s joined as %q", sess.id, sess.name)
		return nil
	})
}

func (s *Server) leave(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.log.Printf("ws: session %s left", sess.id)
}

func (s *Server) dispatch(ctx context.Context, sess *session, msg []byte) {
	base, err := decodeBase(msg)
	if err != nil {
		s.sendError(sess, CodeBadMessage, "decode: %v", err)
		return
	}
	switch base.Type {
	case TypeObserve:
		var m ObserveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(sess, CodeBadMessage, "OBSERVE: %v", err)
			return
		}
		_ = s.engine.Do(ctx, func(e *game.Engine) error {
			e.SetObserver(mgl32.Vec3(m.Pos))
			return nil
		})
	case TypePlace:
		var m PlaceMsg
		if err := json.Unmarshal(msg, &m); err != nil || (m.Pos == nil && m.Ray == nil) {
			s.sendError(sess, CodeBadMessage, "PLACE needs pos or ray")
			return
		}
		s.place(ctx, sess, m)
	case TypeFluid:
		var m FluidMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.sendError(sess, CodeBadMessage, "FLUID: %v", err)
			return
		}
		s.fluid(ctx, sess, m)
	default:
		s.sendError(sess, CodeBadMessage, "unknown message type %q", base.Type)
	}
}

func (s *Server) place(ctx context.Context, sess *session, m PlaceMsg) {
	if !sess.limiter.Allow() {
		s.sendError(sess, CodeRateLimited, "too many edits")
		return
	}
	id, err := s.engine.Registry().ByName(m.Block)
	if err != nil {
		s.sendError(sess, CodeUnknownBlock, "%v", err)
		return
	}
	var ok bool
	var at voxel.Pos
	err = s.engine.Do(ctx, func(e *game.Engine) error {
		if m.Pos != nil {
			at = voxel.Pos{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}
			ok = e.Place(at, id)
			return nil
		}
		at, ok = e.PlaceRay(mgl32.Vec3(m.Ray.Origin), mgl32.Vec3(m.Ray.Dir), id)
		return nil
	})
	if err == nil && !ok {
		s.sendError(sess, CodeRejected, "cannot place %s", m.Block)
	}
}

func (s *Server) fluid(ctx context.Context, sess *session, m FluidMsg) {
	if !sess.limiter.Allow() {
		s.sendError(sess, CodeRateLimited, "too many edits")
		return
	}
	reg := s.engine.Registry()
	id, err := reg.ByName(m.Block)
	if err != nil {
		s.sendError(sess, CodeUnknownBlock, "%v", err)
		return
	}
	if !reg.IsFluid(id) {
		s.sendError(sess, CodeRejected, "%s is not a fluid", m.Block)
		return
	}
	axis, err := voxel.ParseAxis(m.Axis)
	if err != nil {
		s.sendError(sess, CodeBadMessage, "%v", err)
		return
	}
	var ok bool
	err = s.engine.Do(ctx, func(e *game.Engine) error {
		ok = e.PlaceFluid(voxel.Pos{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}, id, axis)
		return nil
	})
	if err == nil && !ok {
		s.sendError(sess, CodeRejected, "cannot place %s at %v", m.Block, m.Pos)
	}
}
