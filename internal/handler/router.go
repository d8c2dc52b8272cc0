package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/swipesafe/backend/internal/handler/call"
	"github.com/zhouzirui/swipesafe/backend/internal/handler/progress"
	"github.com/zhouzirui/swipesafe/backend/internal/handler/scammer"
	middlewarePkg "github.com/zhouzirui/swipesafe/backend/internal/middleware"
	"github.com/zhouzirui/swipesafe/backend/pkg/utils"
)

// Dependencies 汇总路由所需的服务。Scammer 为 nil 时不暴露人设服务接口（使用远端服务的部署）。
type Dependencies struct {
	Scammer  scammer.Service
	Calls    call.Sessions
	Progress progress.Store
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "Route not found")
	})

	r.Route("/api", func(api chi.Router) {
		if deps.Scammer != nil {
			scammer.New(deps.Scammer).RegisterRoutes(api)
		}

		call.New(deps.Calls).RegisterRoutes(api)

		progress.New(deps.Progress).RegisterRoutes(api)
	})

	return r
}
