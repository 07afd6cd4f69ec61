package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/wfunc/buzzparty/broadcast"
	"github.com/wfunc/buzzparty/logger"
	"github.com/wfunc/buzzparty/monitor"
	"github.com/wfunc/buzzparty/network"
	"github.com/wfunc/buzzparty/persistence"
	"github.com/wfunc/buzzparty/router"
	"github.com/wfunc/buzzparty/services"
	"github.com/wfunc/buzzparty/session"
)

const defaultHistoryLimit = 20

type GameServer struct {
	addr           string
	heartbeat      time.Duration
	upgrader       websocket.Upgrader
	router         *router.Router
	sessionManager *session.Manager
	hub            *broadcast.Hub
	monitor        *monitor.Monitor
	records        *services.RecordService
	httpServer     *http.Server
}

type Options struct {
	Addr      string
	Heartbeat time.Duration
	Router    *router.Router
	Sessions  *session.Manager
	Hub       *broadcast.Hub
	Monitor   *monitor.Monitor
	Records   *services.RecordService
}

func NewGameServer(opts Options) *GameServer {
	s := &GameServer{
		addr:           opts.Addr,
		heartbeat:      opts.Heartbeat,
		router:         opts.Router,
		sessionManager: opts.Sessions,
		hub:            opts.Hub,
		monitor:        opts.Monitor,
		records:        opts.Records,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the HTTP routes: the websocket endpoint plus the
// read-only diagnostic views.
func (s *GameServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/rooms", s.handleRooms)
	r.Route("/players/{playerId}", func(r chi.Router) {
		r.Get("/stats", s.handlePlayerStats)
		r.Get("/history", s.handlePlayerHistory)
	})
	if s.monitor != nil {
		r.Handle("/metrics", s.monitor.Handler())
	}
	return r
}

// Start blocks serving HTTP until Shutdown is called.
func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every live connection.
func (s *GameServer) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.sessionManager.CloseAll()
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(conn network.Connection) {
	if s.heartbeat > 0 {
		conn.SetHeartbeat(s.heartbeat)
	}
	sess := session.NewSession(conn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlineConnections()

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		s.router.Disconnect(sess.GetID())
		s.hub.LeaveAll(sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlineConnections()
		_ = sess.Close()
	}()

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if isBadFrame(err) {
				logger.Log.Debugf("session %s sent a bad frame: %v", sess.GetID(), err)
				continue
			}
			return
		}
		s.handleMessage(sess, msg)
	}
}

func (s *GameServer) handleMessage(sess *session.Session, msg *network.Message) {
	sess.Touch()

	var reply router.ReplyFunc
	if msg.Ack != nil {
		ack := *msg.Ack
		reply = func(payload any) {
			if err := sess.Reply(ack, payload); err != nil {
				logger.Log.Debugf("reply to %s failed: %v", sess.GetID(), err)
			}
		}
	}

	if msg.Event == network.EventHeartbeat {
		if reply != nil {
			reply(map[string]int64{"timestamp": time.Now().UnixMilli()})
		}
		return
	}
	s.router.Handle(sess.GetID(), msg.Event, msg.Data, reply)
}

// isBadFrame reports read errors that leave the connection usable.
func isBadFrame(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, network.ErrEmptyEvent) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

type healthResponse struct {
	Status    string `json:"status"`
	Rooms     int    `json:"rooms"`
	Timestamp string `json:"timestamp"`
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Rooms:     s.router.RoomCount(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *GameServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Rooms())
}

func (s *GameServer) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.records.PlayerStats(r.Context(), chi.URLParam(r, "playerId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *GameServer) handlePlayerHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	history, err := s.records.PlayerHistory(r.Context(), chi.URLParam(r, "playerId"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrArchiveDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, persistence.ErrRecordNotFound):
		status = http.StatusNotFound
	default:
		logger.Log.Errorf("http handler: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Debugf("write response: %v", err)
	}
}
