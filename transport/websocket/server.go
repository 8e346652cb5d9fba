package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/clickwinreign/tictactoe-backend/internal/entity"
	"github.com/clickwinreign/tictactoe-backend/internal/room"
	"github.com/clickwinreign/tictactoe-backend/internal/service"
	"github.com/clickwinreign/tictactoe-backend/internal/session"
)

// Server - the UI-facing push channel. Each connection owns one local
// session; room snapshots from the synchronizer are forwarded to the client
// as full-state pushes.
type Server struct {
	logger       *slog.Logger
	synchronizer *room.Synchronizer
	reporter     session.Reporter
	identity     service.IdentityService
	thinkDelay   time.Duration
}

func New(logger *slog.Logger, synchronizer *room.Synchronizer, reporter session.Reporter, identity service.IdentityService, thinkDelay time.Duration) *Server {
	return &Server{
		logger:       logger.With("component", "websocket"),
		synchronizer: synchronizer,
		reporter:     reporter,
		identity:     identity,
		thinkDelay:   thinkDelay,
	}
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.handleConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}

func (that *Server) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("remote", r.RemoteAddr)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error("failed to accept websocket", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := newClient(log, conn, that)
	defer client.teardown()

	log.Info("websocket connection established")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Info("websocket connection closed", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			client.sendError(ctx, "invalid message")
			continue
		}

		client.handle(ctx, &message)
	}
}

// client - one connected UI. mu serializes the reader loop against room
// snapshot deliveries, so the session only ever sees one operation at a time.
type client struct {
	logger *slog.Logger
	conn   *websocket.Conn
	server *Server

	mu      sync.Mutex
	player  entity.PlayerRef
	session *session.Session
	roomID  string
	mark    string

	unsubscribe func()
}

func newClient(logger *slog.Logger, conn *websocket.Conn, server *Server) *client {
	return &client{
		logger: logger,
		conn:   conn,
		server: server,
	}
}

func (that *client) handle(ctx context.Context, message *Message) {
	that.mu.Lock()
	defer that.mu.Unlock()

	var err error
	switch message.Action {
	case ActionHello:
		err = that.handleHello(ctx, message.Payload)
	case ActionBotStart:
		err = that.handleBotStart()
	case ActionMove:
		err = that.handleMove(ctx, message.Payload)
	case ActionJump:
		err = that.handleJump(message.Payload)
	case ActionRoomCreate:
		err = that.handleRoomCreate(ctx)
	case ActionRoomJoin:
		err = that.handleRoomJoin(ctx, message.Payload)
	case ActionRoomLeave:
		err = that.handleRoomLeave(ctx)
	case ActionReset:
		err = that.handleReset(ctx)
	default:
		err = fmt.Errorf("unknown action: %s", message.Action)
	}

	if err != nil {
		that.sendError(ctx, err.Error())
		return
	}

	that.pushSession(ctx)
}

func (that *client) handleHello(_ context.Context, payload json.RawMessage) error {
	var hello HelloPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &hello); err != nil {
			return fmt.Errorf("invalid hello payload: %w", err)
		}
	}

	if hello.Token == "" {
		token, err := that.server.identity.IssueGuestToken()
		if err != nil {
			return fmt.Errorf("failed to issue guest token: %w", err)
		}
		hello.Token = token
	}

	player, err := that.server.identity.CurrentIdentity(hello.Token)
	if err != nil {
		return fmt.Errorf("failed to resolve identity: %w", err)
	}

	that.player = *player
	that.session = session.New(that.logger, that.server.reporter, that.server.thinkDelay)

	return nil
}

func (that *client) handleBotStart() error {
	if that.session == nil {
		return errNoHello
	}

	return that.session.StartBotGame(that.player)
}

func (that *client) handleMove(ctx context.Context, payload json.RawMessage) error {
	if that.session == nil {
		return errNoHello
	}

	var move MovePayload
	if err := json.Unmarshal(payload, &move); err != nil {
		return fmt.Errorf("invalid move payload: %w", err)
	}

	return that.session.SubmitMove(ctx, move.Position)
}

func (that *client) handleJump(payload json.RawMessage) error {
	if that.session == nil {
		return errNoHello
	}

	var jump JumpPayload
	if err := json.Unmarshal(payload, &jump); err != nil {
		return fmt.Errorf("invalid jump payload: %w", err)
	}

	return that.session.JumpTo(jump.Index)
}

func (that *client) handleRoomCreate(ctx context.Context) error {
	if that.session == nil {
		return errNoHello
	}

	created, err := that.server.synchronizer.CreateRoom(ctx, that.player)
	if err != nil {
		return err
	}

	if err = that.session.StartOnlineGame(that.server.synchronizer, created.ID, entity.PlayerX); err != nil {
		return err
	}
	that.roomID = created.ID
	that.mark = entity.PlayerX

	return that.followRoom(ctx, created.ID)
}

func (that *client) handleRoomJoin(ctx context.Context, payload json.RawMessage) error {
	if that.session == nil {
		return errNoHello
	}

	var join RoomJoinPayload
	if err := json.Unmarshal(payload, &join); err != nil {
		return fmt.Errorf("invalid join payload: %w", err)
	}

	joined, err := that.server.synchronizer.JoinRoom(ctx, join.RoomID, that.player)
	if err != nil {
		return err
	}

	if err = that.session.StartOnlineGame(that.server.synchronizer, joined.ID, entity.PlayerO); err != nil {
		return err
	}
	that.roomID = joined.ID
	that.mark = entity.PlayerO

	return that.followRoom(ctx, joined.ID)
}

// followRoom - pumps room snapshots into the session and on to the client
// until the subscription ends.
func (that *client) followRoom(ctx context.Context, roomID string) error {
	updates, cancel, err := that.server.synchronizer.Subscribe(ctx, roomID)
	if err != nil {
		return err
	}

	that.unsubscribe = cancel

	go func() {
		for snapshot := range updates {
			that.mu.Lock()
			if that.session != nil {
				that.session.ApplyRoom(snapshot)
			}
			that.pushRoom(ctx, snapshot)
			that.pushSession(ctx)
			that.mu.Unlock()
		}
	}()

	return nil
}

func (that *client) handleRoomLeave(ctx context.Context) error {
	if that.session == nil {
		return errNoHello
	}

	// the room id is recorded at create/join time; the session's room
	// document may not have arrived yet
	if that.roomID != "" {
		if err := that.server.synchronizer.LeaveRoom(ctx, that.roomID, that.mark); err != nil {
			return err
		}
	}

	that.stopFollowing()
	that.session.Reset()
	that.roomID = ""
	that.mark = ""

	return nil
}

func (that *client) handleReset(_ context.Context) error {
	if that.session == nil {
		return errNoHello
	}

	that.stopFollowing()
	that.session.Reset()
	that.roomID = ""
	that.mark = ""

	return nil
}

func (that *client) stopFollowing() {
	if that.unsubscribe != nil {
		that.unsubscribe()
		that.unsubscribe = nil
	}
}

func (that *client) teardown() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stopFollowing()
}

func (that *client) pushSession(ctx context.Context) {
	if that.session == nil {
		return
	}

	board := that.session.Board()
	that.send(ctx, TypeSession, SessionPayload{
		State:      that.session.State(),
		Board:      board[:],
		Turn:       that.session.TurnMark(),
		HistoryLen: that.session.HistoryLen(),
		Mark:       that.mark,
	})
}

func (that *client) pushRoom(ctx context.Context, snapshot *entity.Room) {
	that.send(ctx, TypeRoom, snapshot)
}

func (that *client) sendError(ctx context.Context, message string) {
	that.send(ctx, TypeError, ErrorPayload{Message: message})
}

func (that *client) send(ctx context.Context, messageType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		that.logger.Error("failed to marshal payload", "error", err)
		return
	}

	envelope, err := json.Marshal(Message{Action: messageType, Payload: data})
	if err != nil {
		that.logger.Error("failed to marshal message", "error", err)
		return
	}

	if err = that.conn.Write(ctx, websocket.MessageText, envelope); err != nil {
		that.logger.Info("failed to write to websocket", "error", err)
	}
}
