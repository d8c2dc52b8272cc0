package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Persona  PersonaConfig
	Call     CallConfig
	Progress ProgressConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	persona, err := loadPersonaConfig()
	if err != nil {
		return nil, err
	}

	call, err := loadCallConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Persona:  persona,
		Call:     call,
		Progress: ProgressConfig{DSN: getEnvOrDefault("PROGRESS_DB", "swipesafe.db")},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr     string
	LogLevel string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	logLevel := getEnvOrDefault("LOG_LEVEL", "info")

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, LogLevel: logLevel}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, LogLevel: logLevel}, nil
}

// 支持的回复生成后端。
const (
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// AIConfig 描述大模型相关配置，用于参考人设服务生成来电方回复。
type AIConfig struct {
	Provider     string
	HistoryLimit int

	// Ark
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// OpenAI 兼容接口
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// Enabled 表示所选后端是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	default:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderArk))
	switch provider {
	case ProviderArk, ProviderGemini, ProviderOpenAI:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 6
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		historyLimit = max(*override, 1)
	}

	return AIConfig{
		Provider:      provider,
		HistoryLimit:  historyLimit,
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("Model")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		GeminiAPIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}, nil
}

// PersonaConfig 描述人设应答服务的接入方式。BaseURL 为空时使用进程内实现。
type PersonaConfig struct {
	BaseURL      string
	Timeout      time.Duration
	ScenarioFile string
}

// Remote 表示是否通过 HTTP 访问远端人设服务。
func (c PersonaConfig) Remote() bool {
	return c.BaseURL != ""
}

func loadPersonaConfig() (PersonaConfig, error) {
	timeout, err := parseDurationEnv("PERSONA_TIMEOUT", 10*time.Second)
	if err != nil {
		return PersonaConfig{}, err
	}

	return PersonaConfig{
		BaseURL:      strings.TrimSuffix(strings.TrimSpace(os.Getenv("PERSONA_SERVICE_URL")), "/"),
		Timeout:      timeout,
		ScenarioFile: strings.TrimSpace(os.Getenv("SCENARIO_FILE")),
	}, nil
}

// CallConfig 描述通话会话的计时参数。
type CallConfig struct {
	MaxDuration   time.Duration
	ReplyDelayMin time.Duration
	ReplyDelayMax time.Duration
	FallbackDelay time.Duration
	ReapAfter     time.Duration
	ReapSchedule  string
}

func loadCallConfig() (CallConfig, error) {
	maxDuration, err := parseDurationEnv("CALL_MAX_DURATION", 300*time.Second)
	if err != nil {
		return CallConfig{}, err
	}

	delayMin, err := parseDurationEnv("CALL_REPLY_DELAY_MIN", 500*time.Millisecond)
	if err != nil {
		return CallConfig{}, err
	}

	delayMax, err := parseDurationEnv("CALL_REPLY_DELAY_MAX", 1500*time.Millisecond)
	if err != nil {
		return CallConfig{}, err
	}
	if delayMax < delayMin {
		return CallConfig{}, fmt.Errorf("CALL_REPLY_DELAY_MAX (%s) must not be below CALL_REPLY_DELAY_MIN (%s)", delayMax, delayMin)
	}

	fallbackDelay, err := parseDurationEnv("CALL_FALLBACK_DELAY", 600*time.Millisecond)
	if err != nil {
		return CallConfig{}, err
	}

	reapAfter, err := parseDurationEnv("CALL_REAP_AFTER", 10*time.Minute)
	if err != nil {
		return CallConfig{}, err
	}

	return CallConfig{
		MaxDuration:   maxDuration,
		ReplyDelayMin: delayMin,
		ReplyDelayMax: delayMax,
		FallbackDelay: fallbackDelay,
		ReapAfter:     reapAfter,
		ReapSchedule:  getEnvOrDefault("CALL_REAP_SCHEDULE", "@every 1m"),
	}, nil
}

// ProgressConfig 描述进度存储（sqlite）位置。
type ProgressConfig struct {
	DSN string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		// 兼容纯数字写法，按秒处理。
		seconds, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
		}
		val = time.Duration(seconds) * time.Second
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
