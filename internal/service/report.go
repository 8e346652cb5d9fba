package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/clickwinreign/tictactoe-backend/internal/entity"
	"github.com/clickwinreign/tictactoe-backend/internal/repository"
)

// ReportService - records finished games. One call appends a single
// GameRecord and bumps both players' leaderboard counters. Callers guarantee
// at most one call per game; this service does not deduplicate. Persistence
// failures are logged and swallowed: game correctness does not depend on
// audit-log durability.
type ReportService struct {
	logger      *slog.Logger
	records     repository.GameRecordRepository
	leaderboard repository.LeaderboardRepository
}

func NewReportService(logger *slog.Logger, records repository.GameRecordRepository, leaderboard repository.LeaderboardRepository) *ReportService {
	return &ReportService{
		logger:      logger.With("component", "report"),
		records:     records,
		leaderboard: leaderboard,
	}
}

// Report - winnerID empty means a draw.
func (that *ReportService) Report(ctx context.Context, playerX, playerO entity.PlayerRef, winnerID string) {
	log := that.logger.With("playerX", playerX.ID, "playerO", playerO.ID, "winner", winnerID)

	record := &entity.GameRecord{
		PlayerX:  playerX,
		PlayerO:  playerO,
		WinnerID: winnerID,
		EndedAt:  time.Now().UTC(),
	}

	if err := that.records.Save(ctx, record); err != nil {
		log.Error("failed to save game record", "error", err)
	}

	that.updateStats(ctx, playerX, winnerID, log)
	that.updateStats(ctx, playerO, winnerID, log)
}

func (that *ReportService) updateStats(ctx context.Context, player entity.PlayerRef, winnerID string, log *slog.Logger) {
	// the bot and anonymous guests stay off the leaderboard
	if player.IsBot() || player.IsGuest() {
		return
	}

	result := entity.ResultDraw
	switch winnerID {
	case "":
	case player.ID:
		result = entity.ResultWin
	default:
		result = entity.ResultLoss
	}

	if err := that.leaderboard.IncrementStats(ctx, player.ID, player.DisplayName, entity.DeltaFor(result)); err != nil {
		log.Error("failed to update leaderboard", "player", player.ID, "error", err)
	}
}
