package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/clickwinreign/tictactoe-backend/internal/entity"
)

const defaultListLimit = 50

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
	LeaderboardHandler(w http.ResponseWriter, r *http.Request)
	HistoryHandler(w http.ResponseWriter, r *http.Request)
	RegisterHandler(w http.ResponseWriter, r *http.Request)
}

type leaderboardRepo interface {
	TopPlayers(ctx context.Context, limit int) ([]*entity.PlayerStats, error)
}

type recordRepo interface {
	List(ctx context.Context, limit int) ([]*entity.GameRecord, error)
}

type userService interface {
	SaveUser(ctx context.Context, user *entity.User) error
}

type identityService interface {
	IssueToken(playerID, displayName string) (string, error)
}

type handlers struct {
	logger      *slog.Logger
	leaderboard leaderboardRepo
	records     recordRepo
	users       userService
	identity    identityService
}

func NewHandlers(logger *slog.Logger, leaderboard leaderboardRepo, records recordRepo, users userService, identity identityService) Handlers {
	return &handlers{
		logger:      logger.With("component", "rest"),
		leaderboard: leaderboard,
		records:     records,
		users:       users,
		identity:    identity,
	}
}

func (that *handlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *handlers) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	players, err := that.leaderboard.TopPlayers(r.Context(), listLimit(r))
	if err != nil {
		that.logger.Error("failed to load leaderboard", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, players)
}

func (that *handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	records, err := that.records.List(r.Context(), listLimit(r))
	if err != nil {
		that.logger.Error("failed to load game history", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, records)
}

// RegisterHandler - stores the profile and issues an identity token. The
// engine does no authentication itself; credentials live with an external
// provider.
func (that *handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var request registerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if request.Email == "" || len(request.Nickname) < 4 || len(request.Nickname) > 12 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	user := &entity.User{Email: request.Email, Nickname: request.Nickname}
	if err := that.users.SaveUser(r.Context(), user); err != nil {
		that.logger.Error("failed to save user", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	token, err := that.identity.IssueToken(uuid.NewString(), request.Nickname)
	if err != nil {
		that.logger.Error("failed to issue token", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, registerResponse{Token: token})
}

type registerRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

type registerResponse struct {
	Token string `json:"token"`
}

func (that *handlers) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}

func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > defaultListLimit {
		return defaultListLimit
	}

	return limit
}
