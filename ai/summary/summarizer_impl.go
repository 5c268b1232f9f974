package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/chatdigest/ai/configloader"
	"github.com/hrygo/chatdigest/ai/core/llm"
)

var (
	// ErrPromptUnavailable 提示词配置文件缺失、不可读或没有 prompt 字段
	ErrPromptUnavailable = errors.New("instruction prompt unavailable")
	// ErrGenerationFailed LLM 未返回任何结果
	ErrGenerationFailed = errors.New("generation failed")
)

// PromptDocument 提示词配置文件结构
type PromptDocument struct {
	Prompt string `json:"prompt" yaml:"prompt"`
}

// llmSummarizer 使用 LLM 生成聊天总结
type llmSummarizer struct {
	llm        llm.Service
	loader     *configloader.Loader
	promptPath string
}

// NewSummarizer 创建总结生成器。提示词每次调用都重新读取，修改配置无需重启。
func NewSummarizer(llmSvc llm.Service, loader *configloader.Loader, promptPath string) Summarizer {
	return &llmSummarizer{
		llm:        llmSvc,
		loader:     loader,
		promptPath: promptPath,
	}
}

func (s *llmSummarizer) Assemble(_ context.Context, transcriptText string) (*GenerationRequest, error) {
	prompt, err := s.loadPrompt()
	if err != nil {
		return nil, err
	}
	return &GenerationRequest{
		InstructionPrompt: prompt,
		TranscriptText:    transcriptText,
	}, nil
}

func (s *llmSummarizer) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	start := time.Now()

	content, stats, err := s.llm.Chat(ctx, req.Messages())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if content == "" {
		return nil, ErrGenerationFailed
	}

	return &GenerationResult{
		CompletionText: content,
		Stats:          stats,
		Latency:        time.Since(start),
	}, nil
}

// loadPrompt 读取 prompt 字段，并把字面量 "\n" 转换为真正的换行
func (s *llmSummarizer) loadPrompt() (string, error) {
	var doc PromptDocument
	if err := s.loader.Load(s.promptPath, &doc); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPromptUnavailable, err)
	}
	if doc.Prompt == "" {
		return "", fmt.Errorf("%w: %s has no prompt field", ErrPromptUnavailable, s.promptPath)
	}
	return strings.ReplaceAll(doc.Prompt, `\n`, "\n"), nil
}
