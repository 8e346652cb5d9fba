package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clickwinreign/tictactoe-backend/internal/config"
	"github.com/clickwinreign/tictactoe-backend/internal/repository"
	"github.com/clickwinreign/tictactoe-backend/internal/repository/storage"
	"github.com/clickwinreign/tictactoe-backend/internal/repository/storage/sqlite"
	"github.com/clickwinreign/tictactoe-backend/internal/room"
	"github.com/clickwinreign/tictactoe-backend/internal/service"
	"github.com/clickwinreign/tictactoe-backend/transport/rest"
	"github.com/clickwinreign/tictactoe-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sqliteStorage, err := sqlite.New(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err = sqliteStorage.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init sqlite storage: %w", err)
	}

	roomRepo := repository.NewRoomRepository(redisStorage.Connection)
	recordRepo := repository.NewGameRecordRepository(sqliteStorage.Connection)
	leaderboardRepo := repository.NewLeaderboardRepository(sqliteStorage.Connection)
	userRepo := repository.NewUserRepository(sqliteStorage.Connection)

	reporter := service.NewReportService(logger, recordRepo, leaderboardRepo)
	identity := service.NewIdentityService(conf.JWTSecretKey)
	users := service.NewUserService(userRepo)
	synchronizer := room.NewSynchronizer(logger, roomRepo, reporter, conf.RoomRetention)

	restHandlers := rest.NewHandlers(logger, leaderboardRepo, recordRepo, users, identity)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(conf.HTTPPort, restHandlers); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run WebSocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, synchronizer, reporter, identity, conf.BotThinkDelay)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
