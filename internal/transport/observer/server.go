package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"marswalk/internal/observability"
	"marswalk/internal/observerproto"
	"marswalk/internal/sim/grid"
	"marswalk/internal/sim/trail"
	"marswalk/internal/sim/world"
)

// Info is the static description of the run served by the bootstrap endpoint.
type Info struct {
	RunID   string
	Bounds  grid.Bounds
	Agents  int
	Markers grid.Markers
	Seed    int64
}

// Server streams frames to loopback websocket clients. It is also a world.Renderer: the loop
// hands it every frame and it fans the encoded frame out without ever blocking the loop.
type Server struct {
	info Info
	log  zerolog.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	tick     atomic.Uint64

	mu       sync.Mutex
	sessions map[string]chan []byte
	latest   []byte

	router *gin.Engine
}

func NewServer(info Info, logger zerolog.Logger) *Server {
	s := &Server{
		info: info,
		log:  logger.With().Str("component", "observer").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
		sessions: make(map[string]chan []byte),
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *gin.Engine {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.log))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost", "http://127.0.0.1"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	r.Use(loopbackOnly())
	_ = r.SetTrustedProxies(nil)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"tick":     s.tick.Load(),
			"sessions": s.Sessions(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/v1/observer/bootstrap", s.bootstrap)
	r.GET("/v1/observer/ws", s.stream)
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("observer listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return nil
}

func (s *Server) bootstrap(c *gin.Context) {
	c.JSON(http.StatusOK, s.Bootstrap())
}

func (s *Server) Bootstrap() observerproto.BootstrapResponse {
	markers := make([]string, 0, len(s.info.Markers))
	for _, r := range s.info.Markers {
		markers = append(markers, string(r))
	}
	buckets := make([]observerproto.BucketInfo, 0, len(trail.Buckets()))
	for _, b := range trail.Buckets() {
		lo, hi := b.Range()
		bi := observerproto.BucketInfo{Name: b.String(), Color: b.Color(), MinAge: lo}
		if b != trail.Stale {
			hi := hi
			bi.MaxAge = &hi
		}
		buckets = append(buckets, bi)
	}
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		RunID:           s.info.RunID,
		Tick:            s.tick.Load(),
		Grid: observerproto.GridParams{
			Width:  s.info.Bounds.Width,
			Height: s.info.Bounds.Height,
			Seed:   s.info.Seed,
		},
		Agents:  s.info.Agents,
		Markers: markers,
		Buckets: buckets,
	}
}

func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sid := fmt.Sprintf("O%d", s.nextID.Add(1))
	out := make(chan []byte, 1)
	s.join(sid, out)
	defer s.leave(sid)
	s.log.Debug().Str("session", sid).Msg("observer joined")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Writer goroutine.
	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case b := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// Reader loop: clients send nothing meaningful; reading surfaces the close.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	s.log.Debug().Str("session", sid).Msg("observer left")
}

func (s *Server) join(sid string, out chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = out
	if s.latest != nil {
		sendLatest(out, s.latest)
	}
}

func (s *Server) leave(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
}

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Render encodes f and offers it to every session, replacing any frame still queued.
func (s *Server) Render(f world.Frame) error {
	b, err := json.Marshal(FrameFromWorld(f, s.info.Markers))
	if err != nil {
		return err
	}
	s.tick.Store(f.Tick)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = b
	for _, out := range s.sessions {
		sendLatest(out, b)
	}
	return nil
}

// FrameFromWorld converts a frame to its wire form.
func FrameFromWorld(f world.Frame, markers grid.Markers) observerproto.FrameMsg {
	msg := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            f.Tick,
		Agents:          make([]observerproto.AgentState, 0, len(f.Agents)),
		Trail:           make([]observerproto.TrailCell, 0, len(f.Trail)),
		Unsupported:     f.Unsupported(),
	}
	for _, a := range f.Agents {
		st := observerproto.AgentState{ID: a.ID, Pos: [2]int{a.Pos.X, a.Pos.Y}}
		if r, err := markers.For(a.ID); err == nil {
			st.Marker = string(r)
		}
		msg.Agents = append(msg.Agents, st)
	}
	for _, m := range f.Trail {
		msg.Trail = append(msg.Trail, observerproto.TrailCell{
			Pos:    [2]int{m.Pos.X, m.Pos.Y},
			Age:    m.Age,
			Bucket: m.Bucket.String(),
		})
	}
	return msg
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func loopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRemote(c.Request.RemoteAddr) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
