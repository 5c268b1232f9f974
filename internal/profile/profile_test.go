package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"CHATDIGEST_LLM_PROVIDER",
	"CHATDIGEST_LLM_API_KEY",
	"CHATDIGEST_LLM_BASE_URL",
	"CHATDIGEST_LLM_MODEL",
	"CHATDIGEST_LLM_TIMEOUT_SECONDS",
	"CHATDIGEST_LLM_MAX_TOKENS",
	"CHATDIGEST_LLM_TEMPERATURE",
	"CHATDIGEST_ONEBOT_URL",
	"CHATDIGEST_ONEBOT_ACCESS_TOKEN",
	"CHATDIGEST_ONEBOT_SECRET",
	"CHATDIGEST_ONEBOT_TIMEOUT_SECONDS",
	"CHATDIGEST_T2I_ENDPOINT",
	"CHATDIGEST_T2I_TIMEOUT_SECONDS",
	"CHATDIGEST_PROMPT_FILE",
	"CHATDIGEST_ADMIN_FILE",
	"CHATDIGEST_TIMEZONE",
	"CHATDIGEST_MAX_CONCURRENT_DIGESTS",
}

// clearEnv 清除测试相关的环境变量
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

// TestProfileDefaults 测试默认值
func TestProfileDefaults(t *testing.T) {
	clearEnv(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.ALLMProvider)
	assert.Equal(t, "https://api.deepseek.com", p.ALLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.ALLMModel)
	assert.Equal(t, 120, p.ALLMTimeout)
	assert.InDelta(t, 0.7, p.ALLMTemperature, 0.001)
	assert.Equal(t, "http://127.0.0.1:3000", p.OneBotURL)
	assert.Equal(t, 30, p.OneBotTimeout)
	assert.Equal(t, "https://t2i.soulter.top/text2img", p.T2IEndpoint)
	assert.Equal(t, "config/prompt.json", p.PromptFile)
	assert.Equal(t, "config/admins.json", p.AdminFile)
	assert.Equal(t, 4, p.MaxConcurrentDigests)
}

// TestProfileFromEnv 测试从环境变量读取配置
func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) string
		expected string
	}{
		{
			name:     "provider default model follows provider",
			envVar:   "CHATDIGEST_LLM_PROVIDER",
			envValue: "zai",
			field:    func(p *Profile) string { return p.ALLMModel },
			expected: "glm-4.7",
		},
		{
			name:     "explicit model wins",
			envVar:   "CHATDIGEST_LLM_MODEL",
			envValue: "deepseek-reasoner",
			field:    func(p *Profile) string { return p.ALLMModel },
			expected: "deepseek-reasoner",
		},
		{
			name:     "onebot secret",
			envVar:   "CHATDIGEST_ONEBOT_SECRET",
			envValue: "s3cret",
			field:    func(p *Profile) string { return p.OneBotSecret },
			expected: "s3cret",
		},
		{
			name:     "prompt file",
			envVar:   "CHATDIGEST_PROMPT_FILE",
			envValue: "/etc/chatdigest/prompt.yaml",
			field:    func(p *Profile) string { return p.PromptFile },
			expected: "/etc/chatdigest/prompt.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.envVar, tt.envValue)

			p := &Profile{}
			p.FromEnv()
			assert.Equal(t, tt.expected, tt.field(p))
		})
	}
}

func TestProfileFromEnv_BadNumbersKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHATDIGEST_LLM_TIMEOUT_SECONDS", "soon")
	t.Setenv("CHATDIGEST_LLM_TEMPERATURE", "warm")

	p := &Profile{}
	p.FromEnv()
	assert.Equal(t, 120, p.ALLMTimeout)
	assert.InDelta(t, 0.7, p.ALLMTemperature, 0.001)
}

func validProfile(t *testing.T) *Profile {
	t.Helper()
	clearEnv(t)
	p := &Profile{Mode: "dev", Port: 28090, Data: t.TempDir()}
	p.FromEnv()
	p.ALLMAPIKey = "sk-test"
	return p
}

func TestValidate(t *testing.T) {
	p := validProfile(t)
	require.NoError(t, p.Validate())
	assert.True(t, p.IsDev())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"missing api key", func(p *Profile) { p.ALLMAPIKey = "" }},
		{"bad onebot url", func(p *Profile) { p.OneBotURL = "not a url" }},
		{"missing t2i endpoint", func(p *Profile) { p.T2IEndpoint = "" }},
		{"port out of range", func(p *Profile) { p.Port = 70000 }},
		{"temperature out of range", func(p *Profile) { p.ALLMTemperature = 3 }},
		{"no digest slots", func(p *Profile) { p.MaxConcurrentDigests = 0 }},
		{"missing data dir", func(p *Profile) { p.Data = "/definitely/not/here" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile(t)
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestValidate_OllamaNeedsNoKey(t *testing.T) {
	p := validProfile(t)
	p.ALLMProvider = "ollama"
	p.ALLMAPIKey = ""
	assert.NoError(t, p.Validate())
}

func TestValidate_UnknownModeFallsBackToDemo(t *testing.T) {
	p := validProfile(t)
	p.Mode = "staging"
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
}

func TestLocation(t *testing.T) {
	p := &Profile{}
	assert.Equal(t, time.Local, p.Location())

	p.Timezone = "UTC"
	assert.Equal(t, time.UTC, p.Location())

	p.Timezone = "Mars/Olympus"
	assert.Equal(t, time.Local, p.Location())
}
