package scammer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/swipesafe/backend/internal/model/scenario"
	"github.com/zhouzirui/swipesafe/backend/internal/service/persona"
	scenarioService "github.com/zhouzirui/swipesafe/backend/internal/service/scenario"
	"github.com/zhouzirui/swipesafe/backend/pkg/utils"
)

// Service 是人设服务在 HTTP 层需要的能力。
type Service interface {
	persona.Backend
	Scenarios() []scenario.Scenario
}

// Handler 人设服务的HTTP处理器，对外暴露与远端人设服务相同的协议
type Handler struct {
	svc Service
}

// New 创建人设服务处理器
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册人设服务相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/scammer/greeting", h.handleGreeting)
	r.Post("/scammer/respond", h.handleRespond)
	r.Get("/scenarios", h.handleListScenarios)
}

func (h *Handler) handleGreeting(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Greeting(r.Context())
	if err != nil {
		slog.Error("[scammer] greeting failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req persona.RespondRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Respond(r.Context(), req)
	switch {
	case errors.Is(err, scenarioService.ErrMessageRequired):
		utils.RespondError(w, http.StatusBadRequest, "No message provided")
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		slog.Error("[scammer] respond failed", "scenario", req.ScenarioID, "err", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.Scenarios())
}
