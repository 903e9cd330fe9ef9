package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Auth   AuthConfig
	Client ClientConfig
	Log    LogConfig
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

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Auth: auth, Client: client, Log: loadLogConfig()}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	SystemPrompt string
	HistoryLimit int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + ARK_MODEL or an AK/SK pair")
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

const defaultSystemPrompt = "You are the host of Z Tavern. Have a friendly conversation with the guest and answer their questions as best you can."

func loadAIConfig() (AIConfig, error) {
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

	history := 10
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		history = max(*override, 0)
	}

	// 兼容旧的 "Model" 变量名。
	modelName := getEnvOrDefault("ARK_MODEL", strings.TrimSpace(os.Getenv("Model")))

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        modelName,
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		SystemPrompt: getEnvOrDefault("AI_SYSTEM_PROMPT", defaultSystemPrompt),
		HistoryLimit: history,
	}, nil
}

// AuthConfig 描述令牌签发配置。
type AuthConfig struct {
	TokenTTL time.Duration
}

func loadAuthConfig() (AuthConfig, error) {
	ttl := 24 * time.Hour
	minutes, err := parseOptionalIntEnv("AUTH_TOKEN_TTL_MINUTES")
	if err != nil {
		return AuthConfig{}, err
	}
	if minutes != nil {
		if *minutes <= 0 {
			return AuthConfig{}, fmt.Errorf("invalid AUTH_TOKEN_TTL_MINUTES value %d: must be positive", *minutes)
		}
		ttl = time.Duration(*minutes) * time.Minute
	}
	return AuthConfig{TokenTTL: ttl}, nil
}

// Credential store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Chat transports.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// ClientConfig 描述客户端连接与凭证存储配置。
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	Store          string
	StorePath      string
	ChatTransport  string
	LogPath        string
}

func loadClientConfig() (ClientConfig, error) {
	timeout := 30 * time.Second
	seconds, err := parseOptionalIntEnv("TAVERN_REQUEST_TIMEOUT")
	if err != nil {
		return ClientConfig{}, err
	}
	if seconds != nil {
		if *seconds < 0 {
			return ClientConfig{}, fmt.Errorf("invalid TAVERN_REQUEST_TIMEOUT value %d: must not be negative", *seconds)
		}
		timeout = time.Duration(*seconds) * time.Second
	}

	store := strings.ToLower(getEnvOrDefault("TAVERN_CREDENTIAL_STORE", StoreFile))
	switch store {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		return ClientConfig{}, fmt.Errorf("invalid TAVERN_CREDENTIAL_STORE value %q", store)
	}

	transport := strings.ToLower(getEnvOrDefault("TAVERN_CHAT_TRANSPORT", TransportHTTP))
	switch transport {
	case TransportHTTP, TransportWebSocket:
	default:
		return ClientConfig{}, fmt.Errorf("invalid TAVERN_CHAT_TRANSPORT value %q", transport)
	}

	return ClientConfig{
		BaseURL:        getEnvOrDefault("TAVERN_API_BASE_URL", "http://localhost:8080"),
		RequestTimeout: timeout,
		Store:          store,
		StorePath:      getEnvOrDefault("TAVERN_CREDENTIAL_PATH", defaultStorePath(store)),
		ChatTransport:  transport,
		LogPath:        getEnvOrDefault("TAVERN_CLIENT_LOG", filepath.Join(os.TempDir(), "z-tavern-client.log")),
	}, nil
}

func defaultStorePath(store string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "z-tavern")
	if store == StoreSQLite {
		return filepath.Join(dir, "client.db")
	}
	return dir
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig() LogConfig {
	pretty, err := parseBoolEnv("LOG_PRETTY", true)
	if err != nil {
		pretty = true
	}
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Pretty: pretty,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
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
