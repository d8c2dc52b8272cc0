package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
	"github.com/zhouzirui/swipesafe/backend/internal/model/scenario"
	"github.com/zhouzirui/swipesafe/backend/internal/service/ai"
	"github.com/zhouzirui/swipesafe/backend/internal/service/persona"
)

// Setup 按配置构造人设客户端：配置了 PERSONA_SERVICE_URL 时走 HTTP，否则使用进程内服务。
// 远端模式下返回的 *Service 为 nil。
func Setup(ctx context.Context, cfg *config.Config) (persona.Client, *Service, error) {
	if cfg.Persona.Remote() {
		client, err := persona.NewHTTPClient(cfg.Persona.BaseURL, cfg.Persona.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("persona client: %w", err)
		}
		slog.Info("[scenario] using remote persona service", "url", cfg.Persona.BaseURL)
		return client, nil, nil
	}

	items := scenario.Seed()
	if cfg.Persona.ScenarioFile != "" {
		loaded, err := scenario.LoadFile(cfg.Persona.ScenarioFile)
		if err != nil {
			return nil, nil, err
		}
		items = loaded
	}

	generator, err := ai.NewGenerator(ctx, cfg.AI)
	if err != nil {
		slog.Warn("[scenario] reply generator unavailable, using scripted replies", "err", err)
		generator = nil
	}
	if generator != nil {
		slog.Info("[scenario] reply generator ready", "provider", generator.Name())
	} else {
		slog.Info("[scenario] no reply generator configured, using scripted replies")
	}

	svc := NewService(scenario.NewMemoryStore(items), generator)
	slog.Info("[scenario] in-process persona service ready", "scenarios", len(items))
	return persona.NewLocalClient(svc), svc, nil
}
