// Package router maps inbound client events onto room and game operations
// and fans the results out to the host, a single player, or the whole room.
package router

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/buzzparty/game"
	"github.com/wfunc/buzzparty/logger"
	"github.com/wfunc/buzzparty/models"
	"github.com/wfunc/buzzparty/monitor"
	"github.com/wfunc/buzzparty/network"
	"github.com/wfunc/buzzparty/question"
	"github.com/wfunc/buzzparty/room"
)

// Transport delivers events to connections and connection groups. One group
// exists per room code.
type Transport interface {
	Emit(connID, event string, payload any) error
	EmitToGroup(group, event string, payload any) error
	JoinGroup(connID, group string) error
	LeaveGroup(connID, group string) error
	RemoveGroup(group string) error
}

// Scheduler runs fn once after delay. Scheduled work is never cancelled.
type Scheduler interface {
	AfterFunc(delay time.Duration, fn func()) int64
}

// Archiver receives finished rounds.
type Archiver interface {
	Archive(rec models.GameRecord)
}

// ReplyFunc answers a request that carried an ack id. It is nil when the
// client did not ask for a reply.
type ReplyFunc func(payload any)

type Option func(*Router)

func WithMonitor(m *monitor.Monitor) Option {
	return func(r *Router) { r.monitor = m }
}

func WithArchiver(a Archiver) Option {
	return func(r *Router) { r.archiver = a }
}

// WithClock overrides time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// Router 串行处理所有事件与定时回调
type Router struct {
	registry  *room.Registry
	transport Transport
	scheduler Scheduler
	questions question.Source
	settings  game.Settings
	monitor   *monitor.Monitor
	archiver  Archiver
	now       func() time.Time

	mutex sync.Mutex
}

func New(registry *room.Registry, transport Transport, scheduler Scheduler, questions question.Source, settings game.Settings, opts ...Option) *Router {
	r := &Router{
		registry:  registry,
		transport: transport,
		scheduler: scheduler,
		questions: questions,
		settings:  settings,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one inbound event from connID to completion.
func (r *Router) Handle(connID, event string, data json.RawMessage, reply ReplyFunc) {
	start := time.Now()
	r.monitor.IncEventsReceived(metricLabel(event))
	defer func() { r.monitor.ObserveEventLatency(time.Since(start)) }()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	switch event {
	case network.EventCreateRoom:
		r.createRoom(connID, reply)
	case network.EventJoinRoom:
		var req joinRoomRequest
		if !decode(connID, event, data, &req) {
			return
		}
		r.joinRoom(connID, req, reply)
	case network.EventStartGame:
		var req startGameRequest
		if !decode(connID, event, data, &req) {
			return
		}
		r.startGame(connID, req)
	case network.EventBuzzIn:
		var req buzzInRequest
		if !decode(connID, event, data, &req) {
			return
		}
		r.buzzIn(req)
	case network.EventSubmitAnswer:
		var req submitAnswerRequest
		if !decode(connID, event, data, &req) {
			return
		}
		r.submitAnswer(connID, req)
	default:
		logger.Log.Debugw("unhandled event", "conn", connID, "event", event)
	}
}

// metricLabel keeps client-chosen event names out of metric labels.
func metricLabel(event string) string {
	switch event {
	case network.EventCreateRoom, network.EventJoinRoom, network.EventStartGame,
		network.EventBuzzIn, network.EventSubmitAnswer:
		return event
	}
	return "unknown"
}

func decode(connID, event string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Log.Warnw("malformed payload", "conn", connID, "event", event, "error", err)
		return false
	}
	return true
}

func (r *Router) createRoom(connID string, reply ReplyFunc) {
	rm, err := r.registry.Create(connID)
	if err != nil {
		logger.Log.Errorw("create room failed", "conn", connID, "error", err)
		r.respond(connID, network.EventError, reply, createRoomReply{Message: msgRoomUnavailable})
		return
	}
	if err := r.transport.JoinGroup(connID, rm.Code); err != nil {
		logger.Log.Warnw("host join group failed", "room", rm.Code, "error", err)
	}
	r.monitor.SetActiveRooms(r.registry.Count())
	logger.Log.Infow("room created", "room", rm.Code, "host", connID)

	r.respond(connID, network.EventRoomCreated, reply, createRoomReply{Success: true, RoomCode: rm.Code})
}

func (r *Router) joinRoom(connID string, req joinRoomRequest, reply ReplyFunc) {
	if req.PlayerID == "" {
		logger.Log.Warnw("join without player id", "conn", connID, "room", req.RoomCode)
		return
	}
	rm, ok := r.registry.Lookup(req.RoomCode)
	if !ok {
		r.emit(connID, network.EventError, errorPayload{Message: msgRoomNotFound})
		return
	}

	p := &room.Player{
		ID:     req.PlayerID,
		Name:   req.PlayerName,
		Avatar: req.Avatar,
		ConnID: connID,
	}
	if prev := r.registry.AddPlayer(rm, p); prev != nil {
		r.emit(prev.HostConn, network.EventPlayerLeft, playerLeftPayload{PlayerID: p.ID, PlayerName: p.Name})
		r.emitToGroup(prev.Code, network.EventPlayerList, prev.Players())
		// 主持人的连接留在自己的房间组里
		if prev.HostConn != connID {
			if err := r.transport.LeaveGroup(connID, prev.Code); err != nil {
				logger.Log.Warnw("player leave group failed", "room", prev.Code, "conn", connID, "error", err)
			}
		}
	}
	if err := r.transport.JoinGroup(connID, rm.Code); err != nil {
		logger.Log.Warnw("player join group failed", "room", rm.Code, "conn", connID, "error", err)
	}

	r.emit(rm.HostConn, network.EventPlayerJoined, p)
	r.emitToGroup(rm.Code, network.EventPlayerList, rm.Players())

	joined := joinedRoomPayload{Success: true, RoomCode: rm.Code, PlayerID: p.ID}
	r.emit(connID, network.EventJoinedRoom, joined)
	if reply != nil {
		reply(joined)
	}
	logger.Log.Infow("player joined", "room", rm.Code, "player", p.ID, "players", rm.PlayerCount())
}

func (r *Router) startGame(connID string, req startGameRequest) {
	rm, ok := r.registry.Lookup(req.RoomCode)
	if !ok {
		r.emit(connID, network.EventError, errorPayload{Message: msgNotAuthorized})
		return
	}
	mode := req.Game
	if mode == "" {
		mode = game.ModeTrivia
	}
	if err := r.settings.StartGame(rm, r.questions, mode, connID, r.now()); err != nil {
		logger.Log.Infow("start game rejected", "room", rm.Code, "conn", connID, "error", err)
		r.emit(connID, network.EventError, errorPayload{Message: msgNotAuthorized})
		return
	}

	r.emitToGroup(rm.Code, network.EventGameStarted, gameStartedPayload{
		Game:           mode,
		TotalQuestions: r.settings.RoundLength,
	})
	logger.Log.Infow("game started", "room", rm.Code, "mode", mode)
	r.scheduleAdvance(rm.Code, rm.Generation, r.settings.StartDelay)
}

func (r *Router) buzzIn(req buzzInRequest) {
	rm, ok := r.registry.FindRoomContaining(req.PlayerID)
	if !ok {
		return
	}
	p, ok := r.settings.BuzzIn(rm, req.PlayerID)
	if !ok {
		return
	}
	// host 也在房间组内
	r.emitToGroup(rm.Code, network.EventPlayerBuzzed, playerBuzzedPayload{PlayerID: p.ID, PlayerName: p.Name})
}

func (r *Router) submitAnswer(connID string, req submitAnswerRequest) {
	rm, ok := r.registry.FindRoomContaining(req.PlayerID)
	if !ok {
		return
	}
	sub, ok := r.settings.SubmitAnswer(rm, req.PlayerID, req.Answer, r.now())
	if !ok {
		return
	}
	r.monitor.IncAnswers(sub.Record.Correct)

	r.emit(connID, network.EventAnswerResult, answerResultPayload{
		Correct:       sub.Record.Correct,
		Points:        sub.Record.Points,
		CorrectAnswer: sub.CorrectAnswer,
		TotalScore:    sub.Player.Score,
	})
	r.emit(rm.HostConn, network.EventAnswerSubmitted, answerSubmittedPayload{
		PlayerID:     sub.Player.ID,
		PlayerName:   sub.Player.Name,
		Correct:      sub.Record.Correct,
		Points:       sub.Record.Points,
		Answered:     sub.Answered,
		TotalPlayers: rm.PlayerCount(),
	})

	if sub.ShouldAdvance {
		r.scheduleAdvance(rm.Code, rm.Generation, r.settings.AdvanceDelay)
	}
}

// scheduleAdvance captures only the room key and generation. The callback
// re-resolves the room and drops out if it is gone or has moved on.
func (r *Router) scheduleAdvance(code string, generation int64, delay time.Duration) {
	r.scheduler.AfterFunc(delay, func() {
		r.mutex.Lock()
		defer r.mutex.Unlock()

		rm, ok := r.registry.Lookup(code)
		if !ok || rm.Generation != generation {
			logger.Log.Debugw("stale advance dropped", "room", code, "generation", generation)
			return
		}
		r.advance(rm)
	})
}

func (r *Router) advance(rm *room.Room) {
	adv, ok := r.settings.AdvanceQuestion(rm, r.now())
	if !ok {
		return
	}
	if adv.Finished {
		r.finishRound(rm, adv)
		return
	}

	r.emit(rm.HostConn, network.EventNewQuestion, hostQuestionPayload{
		Question:       *adv.Question,
		QuestionNumber: adv.Number,
		TotalQuestions: adv.Total,
	})
	redacted := playerQuestionPayload{
		PublicQuestion: adv.Question.Public(),
		QuestionNumber: adv.Number,
		TotalQuestions: adv.Total,
	}
	for _, p := range rm.Players() {
		r.emit(p.ConnID, network.EventNewQuestion, redacted)
	}
}

func (r *Router) finishRound(rm *room.Room, adv game.Advance) {
	r.emitToGroup(rm.Code, network.EventRoundEnd, roundEndPayload{Leaderboard: adv.Leaderboard})
	r.monitor.IncRoundsCompleted()
	logger.Log.Infow("round finished", "room", rm.Code, "players", len(adv.Leaderboard))

	if r.archiver == nil {
		return
	}
	finished := r.now()
	rec := models.GameRecord{
		RoomCode:   rm.Code,
		GameMode:   rm.CurrentGame,
		Questions:  adv.Total,
		StartedAt:  rm.GameStarted,
		FinishedAt: finished,
	}
	for _, e := range adv.Leaderboard {
		rec.Results = append(rec.Results, models.PlayerResult{
			PlayerID: e.ID,
			Name:     e.Name,
			Avatar:   e.Avatar,
			Score:    e.Score,
			Rank:     e.Rank,
			RoomCode: rm.Code,
			PlayedAt: finished,
		})
	}
	r.archiver.Archive(rec)
}

// Disconnect tears down every room hosted by connID. If connID hosts
// nothing, the first player seat bound to it is released.
func (r *Router) Disconnect(connID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	hosted := false
	for _, rm := range r.registry.Rooms() {
		if rm.HostConn != connID {
			continue
		}
		hosted = true
		r.registry.Delete(rm.Code)
		r.emitToGroup(rm.Code, network.EventRoomClosed, roomClosedPayload{Message: msgHostLeft})
		if err := r.transport.RemoveGroup(rm.Code); err != nil {
			logger.Log.Warnw("remove group failed", "room", rm.Code, "error", err)
		}
		logger.Log.Infow("room closed", "room", rm.Code, "reason", "host disconnected")
	}
	if hosted {
		r.monitor.SetActiveRooms(r.registry.Count())
		return
	}

	for _, rm := range r.registry.Rooms() {
		p, ok := rm.PlayerByConn(connID)
		if !ok {
			continue
		}
		r.registry.RemovePlayer(rm, p.ID)
		r.emit(rm.HostConn, network.EventPlayerLeft, playerLeftPayload{PlayerID: p.ID, PlayerName: p.Name})
		logger.Log.Infow("player left", "room", rm.Code, "player", p.ID)
		return
	}
}

// Rooms returns a diagnostic snapshot of every live room.
func (r *Router) Rooms() []RoomSummary {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rooms := r.registry.Rooms()
	out := make([]RoomSummary, 0, len(rooms))
	for _, rm := range rooms {
		s := RoomSummary{
			Code:      rm.Code,
			Players:   rm.PlayerCount(),
			GameState: rm.GameState(),
		}
		if rm.CurrentGame != "" {
			g := rm.CurrentGame
			s.CurrentGame = &g
		}
		out = append(out, s)
	}
	return out
}

func (r *Router) RoomCount() int {
	return r.registry.Count()
}

func (r *Router) respond(connID, event string, reply ReplyFunc, payload any) {
	if reply != nil {
		reply(payload)
		return
	}
	r.emit(connID, event, payload)
}

func (r *Router) emit(connID, event string, payload any) {
	if connID == "" {
		return
	}
	if err := r.transport.Emit(connID, event, payload); err != nil {
		logger.Log.Debugw("emit failed", "conn", connID, "event", event, "error", err)
	}
}

func (r *Router) emitToGroup(group, event string, payload any) {
	if err := r.transport.EmitToGroup(group, event, payload); err != nil {
		logger.Log.Debugw("group emit failed", "group", group, "event", event, "error", err)
	}
}
