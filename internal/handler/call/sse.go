package call

import (
	"log/slog"
	"net/http"
	"time"

	callService "github.com/zhouzirui/swipesafe/backend/internal/service/call"
	"github.com/zhouzirui/swipesafe/backend/pkg/utils"
)

// handleEvents 以 SSE 推送会话事件，推送结果后结束响应
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	events, unsubscribe := session.Events().Subscribe(64)
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	slog.Info("[sse] opening event stream", "session", session.ID())
	defer slog.Info("[sse] closing event stream", "session", session.ID())

	if err := utils.SendSSEEvent(w, flusher, "snapshot", session.Snapshot()); err != nil {
		return
	}
	if ev, ended := session.ResultEvent(); ended {
		_ = utils.SendSSEEvent(w, flusher, string(ev.Type), ev)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				return
			}
			if ev.Type == callService.EventResult {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
