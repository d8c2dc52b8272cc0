package progress

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/swipesafe/backend/internal/model/progress"
	progressService "github.com/zhouzirui/swipesafe/backend/internal/service/progress"
	"github.com/zhouzirui/swipesafe/backend/pkg/utils"
)

// Store 是进度处理器依赖的存储能力。
type Store interface {
	Summary(ctx context.Context, playerID string) (model.Summary, error)
	Attempts(ctx context.Context, playerID string) ([]model.Attempt, error)
	SaveGameState(ctx context.Context, playerID string, data json.RawMessage) (model.GameState, error)
	LoadGameState(ctx context.Context, playerID string) (model.GameState, error)
}

// Handler 进度与健康检查的HTTP处理器
type Handler struct {
	store Store
	now   func() time.Time
}

// New 创建进度处理器
func New(store Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// RegisterRoutes 注册进度相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/progress/{playerID}", h.handleSummary)
	r.Get("/progress/{playerID}/attempts", h.handleAttempts)
	r.Post("/game-state", h.handleSaveGameState)
	r.Get("/game-state/{playerID}", h.handleLoadGameState)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": h.now().Format(time.RFC3339),
		"service":   "SwipeSafe Backend",
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		slog.Error("[progress] summary failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.Attempts(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		slog.Error("[progress] list attempts failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load attempts")
		return
	}
	utils.RespondJSON(w, http.StatusOK, attempts)
}

// handleSaveGameState 保存前端的进度快照。玩家标识取自 playerId 查询参数或请求体字段。
func (h *Handler) handleSaveGameState(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := utils.DecodeJSON(r, &raw); err != nil || len(raw) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	playerID := strings.TrimSpace(r.URL.Query().Get("playerId"))
	if playerID == "" {
		var probe struct {
			PlayerID string `json:"playerId"`
		}
		_ = json.Unmarshal(raw, &probe)
		playerID = probe.PlayerID
	}
	if strings.TrimSpace(playerID) == "" {
		playerID = "anonymous"
	}

	if _, err := h.store.SaveGameState(r.Context(), playerID, raw); err != nil {
		if errors.Is(err, progressService.ErrInvalidState) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("[progress] save game state failed", "player", playerID, "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save game state")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Game state saved",
		"data":    raw,
	})
}

func (h *Handler) handleLoadGameState(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.LoadGameState(r.Context(), chi.URLParam(r, "playerID"))
	switch {
	case errors.Is(err, progressService.ErrStateNotFound):
		utils.RespondError(w, http.StatusNotFound, "game state not found")
		return
	case err != nil:
		slog.Error("[progress] load game state failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load game state")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"playerId":  state.PlayerID,
		"data":      json.RawMessage(state.Data),
		"updatedAt": state.UpdatedAt,
	})
}
