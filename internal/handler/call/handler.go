package call

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/outcome"
	model "github.com/zhouzirui/swipesafe/backend/internal/model/call"
	callService "github.com/zhouzirui/swipesafe/backend/internal/service/call"
	"github.com/zhouzirui/swipesafe/backend/pkg/utils"
)

// Sessions 是处理器依赖的会话管理能力。
type Sessions interface {
	Create(ctx context.Context, req callService.CreateRequest) (*callService.Session, error)
	Get(id string) (*callService.Session, error)
	List() []model.Snapshot
}

// Handler 通话模拟的HTTP处理器
type Handler struct {
	sessions     Sessions
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	heartbeat    time.Duration
}

// New 创建通话处理器
func New(sessions Sessions) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval: 54 * time.Second,
		heartbeat:    15 * time.Second,
	}
}

// RegisterRoutes 注册通话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/calls", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{callID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/accept", h.handleAccept)
			r.Post("/decline", h.handleDecline)
			r.Post("/end", h.handleEnd)
			r.Post("/messages", h.handleMessage)
			r.Get("/ws", h.handleWebSocket)
			r.Get("/events", h.handleEvents)
		})
	})
}

type resultResponse struct {
	Result outcome.Result `json:"result"`
	Call   model.Snapshot `json:"call"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req callService.CreateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.Create(r.Context(), req)
	if err != nil {
		slog.Error("[call] create failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session.Snapshot())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := session.Accept(r.Context()); err != nil {
		respondCallError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	result, err := session.Decline()
	if err != nil {
		respondCallError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resultResponse{Result: result, Call: session.Snapshot()})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	result, err := session.End()
	if err != nil {
		respondCallError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resultResponse{Result: result, Call: session.Snapshot()})
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := session.Submit(r.Context(), payload.Text); err != nil {
		respondCallError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, session.Snapshot())
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*callService.Session, bool) {
	session, err := h.sessions.Get(chi.URLParam(r, "callID"))
	if err != nil {
		respondCallError(w, err)
		return nil, false
	}
	return session, true
}

func respondCallError(w http.ResponseWriter, err error) {
	utils.RespondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, callService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, callService.ErrInvalidPhase), errors.Is(err, callService.ErrReplyPending):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
