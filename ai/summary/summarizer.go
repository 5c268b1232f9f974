package summary

import (
	"context"
	"time"

	"github.com/hrygo/chatdigest/ai/core/llm"
)

// Summarizer 将聊天记录文本交给 LLM 生成 Markdown 总结
type Summarizer interface {
	// Assemble 读取指令提示词并与聊天记录组合成生成请求
	Assemble(ctx context.Context, transcriptText string) (*GenerationRequest, error)
	// Generate 执行一次生成调用，不重试
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
}

// GenerationRequest 生成请求
type GenerationRequest struct {
	InstructionPrompt string
	TranscriptText    string
}

// Messages 返回单轮对话：system 指令 + 一条 user 聊天记录
func (r *GenerationRequest) Messages() []llm.Message {
	return []llm.Message{
		llm.SystemPrompt(r.InstructionPrompt),
		llm.UserMessage(r.TranscriptText),
	}
}

// GenerationResult 生成结果
type GenerationResult struct {
	CompletionText string
	Stats          *llm.LLMCallStats
	Latency        time.Duration
}
