package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	ALLMProvider    string  `validate:"required"` // Provider identifier: zai, deepseek, openai, siliconflow, dashscope, openrouter, ollama
	ALLMAPIKey      string  // Unified LLM API key
	ALLMBaseURL     string  `validate:"omitempty,url"` // Unified LLM base URL (optional, has default per provider)
	ALLMModel       string  `validate:"required"`      // Model name: glm-4.7, deepseek-chat, gpt-4o, etc.
	ALLMTimeout     int     `validate:"min=1"`         // LLM request timeout in seconds (default: 120)
	ALLMMaxTokens   int     `validate:"min=0"`
	ALLMTemperature float32 `validate:"min=0,max=2"`

	// OneBot v11 HTTP endpoint of the QQ bot implementation
	OneBotURL         string `validate:"required,url"`
	OneBotAccessToken string
	OneBotSecret      string
	OneBotTimeout     int `validate:"min=1"` // seconds

	// Text-to-image service
	T2IEndpoint string `validate:"required,url"`
	T2ITimeout  int    `validate:"min=1"` // seconds

	// Upper bound on digests running at once
	MaxConcurrentDigests int `validate:"min=1"`

	// Documents read on every use, relative to Data
	PromptFile string `validate:"required"`
	AdminFile  string `validate:"required"`

	Mode     string `validate:"oneof=prod dev demo"`
	Addr     string
	Port     int    `validate:"min=0,max=65535"`
	Data     string
	Version  string
	Timezone string // IANA name for transcript timestamps; empty means local time
}

// Provider default configurations for LLM.
// Used when LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

var validate = validator.New()

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

// FromEnv loads the LLM, OneBot and renderer settings from environment variables.
func (p *Profile) FromEnv() {
	p.ALLMProvider = getEnvOrDefault("CHATDIGEST_LLM_PROVIDER", "deepseek")
	p.ALLMAPIKey = getEnvOrDefault("CHATDIGEST_LLM_API_KEY", "")
	p.ALLMBaseURL = getEnvOrDefault("CHATDIGEST_LLM_BASE_URL", "")
	p.ALLMModel = getEnvOrDefault("CHATDIGEST_LLM_MODEL", "")
	p.ALLMTimeout = getEnvOrDefaultInt("CHATDIGEST_LLM_TIMEOUT_SECONDS", 120)
	p.ALLMMaxTokens = getEnvOrDefaultInt("CHATDIGEST_LLM_MAX_TOKENS", 0)
	p.ALLMTemperature = getEnvOrDefaultFloat("CHATDIGEST_LLM_TEMPERATURE", 0.7)

	if _, ok := llmProviderDefaults[p.ALLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, treating as generic OpenAI-compatible endpoint", "provider", p.ALLMProvider)
	}
	if defaults, ok := llmProviderDefaults[p.ALLMProvider]; ok {
		if p.ALLMBaseURL == "" {
			p.ALLMBaseURL = defaults.BaseURL
		}
		if p.ALLMModel == "" {
			p.ALLMModel = defaults.Model
		}
	}

	p.OneBotURL = getEnvOrDefault("CHATDIGEST_ONEBOT_URL", "http://127.0.0.1:3000")
	p.OneBotAccessToken = getEnvOrDefault("CHATDIGEST_ONEBOT_ACCESS_TOKEN", "")
	p.OneBotSecret = getEnvOrDefault("CHATDIGEST_ONEBOT_SECRET", "")
	p.OneBotTimeout = getEnvOrDefaultInt("CHATDIGEST_ONEBOT_TIMEOUT_SECONDS", 30)

	p.T2IEndpoint = getEnvOrDefault("CHATDIGEST_T2I_ENDPOINT", "https://t2i.soulter.top/text2img")
	p.T2ITimeout = getEnvOrDefaultInt("CHATDIGEST_T2I_TIMEOUT_SECONDS", 60)

	p.MaxConcurrentDigests = getEnvOrDefaultInt("CHATDIGEST_MAX_CONCURRENT_DIGESTS", 4)

	p.PromptFile = getEnvOrDefault("CHATDIGEST_PROMPT_FILE", filepath.Join("config", "prompt.json"))
	p.AdminFile = getEnvOrDefault("CHATDIGEST_ADMIN_FILE", filepath.Join("config", "admins.json"))
	p.Timezone = getEnvOrDefault("CHATDIGEST_TIMEZONE", p.Timezone)
}

// Location returns the configured timezone, falling back to local time.
func (p *Profile) Location() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		slog.Warn("invalid timezone, using local time", "timezone", p.Timezone, "error", err)
		return time.Local
	}
	return loc
}

// OneBotTimeoutDuration returns the OneBot per-call timeout.
func (p *Profile) OneBotTimeoutDuration() time.Duration {
	return time.Duration(p.OneBotTimeout) * time.Second
}

// T2ITimeoutDuration returns the text-to-image per-call timeout.
func (p *Profile) T2ITimeoutDuration() time.Duration {
	return time.Duration(p.T2ITimeout) * time.Second
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		if p.Mode == "prod" {
			if runtime.GOOS == "windows" {
				p.Data = filepath.Join(os.Getenv("ProgramData"), "chatdigest")
			} else {
				p.Data = "/var/opt/chatdigest"
			}
		} else {
			p.Data = "."
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.ALLMAPIKey == "" && p.ALLMProvider != "ollama" {
		return errors.Errorf("LLM API key is required for provider %q (set CHATDIGEST_LLM_API_KEY)", p.ALLMProvider)
	}

	if err := validate.Struct(p); err != nil {
		return errors.Wrap(err, "invalid profile")
	}
	return nil
}
