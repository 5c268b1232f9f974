// Package digest implements the chat digest commands.
//
// Both commands build a transcript from group history, hand it to the
// summarizer and reply with the rendered image. Every failure is terminal
// for the invocation and is reported to the chat exactly once.
package digest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/chatdigest/ai/metrics"
	"github.com/hrygo/chatdigest/ai/summary"
	"github.com/hrygo/chatdigest/plugin/chat_apps"
	"github.com/hrygo/chatdigest/plugin/chat_apps/transcript"
	"github.com/hrygo/chatdigest/server/auth"
)

// Chat replies.
const (
	ReplyNotGroup        = "当前不为群聊环境"
	ReplyEmpty           = "未获取到任何消息记录"
	ReplyGenerationFail  = "LLM处理失败，无法生成总结"
	ReplyFetchFail       = "获取聊天记录失败"
	ReplyRenderFail      = "总结图片生成失败"
	ReplyDenied          = auth.DeniedReply
	ReplyUsage           = "\n请按照「 " + CommandDirect + " [要总结的聊天记录数量] 」格式发送\n例如「 " + CommandDirect + " 114 」~"
	replyDebugDumpPrefix = "prompt已通过Info Logs在控制台输出，可前往控制台查看。以下为格式化后的聊天记录Debug输出：\n"
)

// Invocation outcomes reported to the recorder.
const (
	OutcomeSuccess          = "success"
	OutcomeNotGroup         = "not_group"
	OutcomeUsage            = "usage"
	OutcomeFetchFailed      = "fetch_failed"
	OutcomeEmpty            = "empty"
	OutcomeGenerationFailed = "generation_failed"
	OutcomeDenied           = "denied"
	OutcomeRenderFailed     = "render_failed"
	OutcomeSendFailed       = "send_failed"
)

// TranscriptSource builds transcripts for a group.
type TranscriptSource interface {
	BuildFromForward(ctx context.Context, groupID string) (*transcript.Transcript, error)
	BuildDirect(ctx context.Context, groupID string, count int) (*transcript.Transcript, error)
}

// ImageRenderer turns markdown into an image reference.
type ImageRenderer interface {
	Render(ctx context.Context, markdown string) (string, error)
}

// AdminChecker decides whether a user may see the debug dump.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Recorder receives invocation metrics.
type Recorder interface {
	InvocationStarted()
	RecordInvocation(flow, outcome string, latency time.Duration)
	RecordStage(stage string, latency time.Duration)
	RecordTranscript(flow string, lines int)
	RecordLLMTokens(model, tokenType string, count int)
	RecordLLMCachedTokens(model string, count int)
}

// Deps holds the collaborators of the digest service.
type Deps struct {
	Transcripts TranscriptSource
	Summarizer  summary.Summarizer
	Renderer    ImageRenderer
	Admins      AdminChecker
	Replier     Replier
	Recorder    Recorder // optional
	Model       string   // model label for token metrics
}

// Service runs digest commands.
type Service struct {
	transcripts TranscriptSource
	summarizer  summary.Summarizer
	renderer    ImageRenderer
	admins      AdminChecker
	replier     Replier
	recorder    Recorder
	model       string
}

// NewService creates a digest service.
func NewService(deps Deps) *Service {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		transcripts: deps.Transcripts,
		summarizer:  deps.Summarizer,
		renderer:    deps.Renderer,
		admins:      deps.Admins,
		replier:     deps.Replier,
		recorder:    recorder,
		model:       deps.Model,
	}
}

// invocation carries per-request state through a flow.
type invocation struct {
	msg    *chat_apps.IncomingMessage
	cmd    *Command
	logger *slog.Logger
}

// Run executes cmd for msg. It blocks until the reply has been sent and is
// meant to be called on its own goroutine.
func (s *Service) Run(ctx context.Context, msg *chat_apps.IncomingMessage, cmd *Command) {
	start := time.Now()
	inv := &invocation{
		msg: msg,
		cmd: cmd,
		logger: slog.With(
			"request_id", uuid.NewString(),
			"flow", cmd.Flow,
			"chat_id", msg.PlatformChatID,
			"user_id", msg.PlatformUserID,
		),
	}

	s.recorder.InvocationStarted()
	var outcome string
	switch cmd.Flow {
	case FlowDirect:
		outcome = s.runDirect(ctx, inv)
	default:
		outcome = s.runForward(ctx, inv)
	}
	s.recorder.RecordInvocation(string(cmd.Flow), outcome, time.Since(start))

	inv.logger.Info("digest finished", "outcome", outcome, "duration_ms", time.Since(start).Milliseconds())
}

// runForward summarizes the first forward bundle among the recent messages.
// Count and debug arguments are accepted but have no effect here.
func (s *Service) runForward(ctx context.Context, inv *invocation) string {
	if !inv.msg.IsGroup() {
		return s.replyNotGroup(ctx, inv)
	}
	groupID := inv.msg.PlatformChatID

	fetchStart := time.Now()
	t, err := s.transcripts.BuildFromForward(ctx, groupID)
	s.recorder.RecordStage(metrics.StageFetch, time.Since(fetchStart))
	if err != nil {
		inv.logger.Error("digest: build forward transcript failed", "error", err)
		return s.replyText(ctx, inv, ReplyFetchFail, OutcomeFetchFailed)
	}
	if t.Empty() {
		return s.replyText(ctx, inv, ReplyEmpty, OutcomeEmpty)
	}
	s.recorder.RecordTranscript(string(FlowForward), len(t.Lines))

	_, result, err := s.generate(ctx, inv, t.Text())
	if err != nil {
		return s.replyText(ctx, inv, ReplyGenerationFail, OutcomeGenerationFailed)
	}

	return s.renderAndSend(ctx, inv, result.CompletionText)
}

// runDirect summarizes the last count messages of the group. With a debug
// flag, admins additionally get the prompt and response logged and the
// transcript echoed to the chat before the summary.
func (s *Service) runDirect(ctx context.Context, inv *invocation) string {
	if !inv.msg.IsGroup() {
		return s.replyNotGroup(ctx, inv)
	}
	count, ok := inv.cmd.Count()
	if !ok {
		return s.replyText(ctx, inv, ReplyUsage, OutcomeUsage)
	}
	groupID := inv.msg.PlatformChatID

	fetchStart := time.Now()
	t, err := s.transcripts.BuildDirect(ctx, groupID, count)
	s.recorder.RecordStage(metrics.StageFetch, time.Since(fetchStart))
	if err != nil {
		inv.logger.Error("digest: build direct transcript failed", "count", count, "error", err)
		return s.replyText(ctx, inv, ReplyFetchFail, OutcomeFetchFailed)
	}
	if t.Empty() {
		return s.replyText(ctx, inv, ReplyEmpty, OutcomeEmpty)
	}
	s.recorder.RecordTranscript(string(FlowDirect), len(t.Lines))

	text := t.Text()
	req, result, genErr := s.generate(ctx, inv, text)

	if auth.IsDebug(inv.cmd.DebugFlag()) {
		if !s.isAdmin(ctx, inv) {
			return s.replyText(ctx, inv, ReplyDenied, OutcomeDenied)
		}
		s.logDebug(inv, req, result)
		if err := s.replier.SendGroupText(ctx, groupID, replyDebugDumpPrefix+text); err != nil {
			inv.logger.Error("digest: send debug dump failed", "error", err)
			return OutcomeSendFailed
		}
	}

	if genErr != nil {
		return s.replyText(ctx, inv, ReplyGenerationFail, OutcomeGenerationFailed)
	}

	return s.renderAndSend(ctx, inv, result.CompletionText)
}

// generate assembles the request and calls the provider once.
func (s *Service) generate(ctx context.Context, inv *invocation, text string) (*summary.GenerationRequest, *summary.GenerationResult, error) {
	start := time.Now()
	defer func() { s.recorder.RecordStage(metrics.StageGenerate, time.Since(start)) }()

	req, err := s.summarizer.Assemble(ctx, text)
	if err != nil {
		inv.logger.Error("digest: assemble prompt failed", "error", err)
		return nil, nil, err
	}

	result, err := s.summarizer.Generate(ctx, req)
	if err != nil {
		inv.logger.Error("digest: generation failed", "error", err)
		return req, nil, err
	}

	if result.Stats != nil {
		s.recorder.RecordLLMTokens(s.model, "prompt", result.Stats.PromptTokens)
		s.recorder.RecordLLMTokens(s.model, "completion", result.Stats.CompletionTokens)
		if result.Stats.CacheReadTokens > 0 {
			s.recorder.RecordLLMCachedTokens(s.model, result.Stats.CacheReadTokens)
		}
	}
	return req, result, nil
}

func (s *Service) renderAndSend(ctx context.Context, inv *invocation, markdown string) string {
	renderStart := time.Now()
	url, err := s.renderer.Render(ctx, markdown)
	s.recorder.RecordStage(metrics.StageRender, time.Since(renderStart))
	if err != nil {
		inv.logger.Error("digest: render failed", "error", err)
		return s.replyText(ctx, inv, ReplyRenderFail, OutcomeRenderFailed)
	}

	sendStart := time.Now()
	err = s.replier.SendGroupImage(ctx, inv.msg.PlatformChatID, url)
	s.recorder.RecordStage(metrics.StageSend, time.Since(sendStart))
	if err != nil {
		inv.logger.Error("digest: send image failed", "url", url, "error", err)
		return OutcomeSendFailed
	}
	return OutcomeSuccess
}

func (s *Service) isAdmin(ctx context.Context, inv *invocation) bool {
	ok, err := s.admins.IsAdmin(ctx, inv.msg.PlatformUserID)
	if err != nil {
		inv.logger.Warn("digest: admin check failed, denying", "error", err)
		return false
	}
	return ok
}

func (s *Service) logDebug(inv *invocation, req *summary.GenerationRequest, result *summary.GenerationResult) {
	var prompt, response string
	if req != nil {
		prompt = req.InstructionPrompt
	}
	if result != nil {
		response = result.CompletionText
	}
	inv.logger.Info("digest: debug prompt", "prompt", prompt)
	inv.logger.Info("digest: debug llm_response", "llm_response", response)
}

// replyNotGroup answers privately since there is no group to reply to.
func (s *Service) replyNotGroup(ctx context.Context, inv *invocation) string {
	if err := s.replier.SendPrivateText(ctx, inv.msg.PlatformUserID, ReplyNotGroup); err != nil {
		inv.logger.Error("digest: send reply failed", "error", err)
		return OutcomeSendFailed
	}
	return OutcomeNotGroup
}

func (s *Service) replyText(ctx context.Context, inv *invocation, text, outcome string) string {
	if err := s.replier.SendGroupText(ctx, inv.msg.PlatformChatID, text); err != nil {
		inv.logger.Error("digest: send reply failed", "outcome", outcome, "error", err)
		return OutcomeSendFailed
	}
	return outcome
}

type noopRecorder struct{}

func (noopRecorder) InvocationStarted() {}
func (noopRecorder) RecordInvocation(string, string, time.Duration) {}
func (noopRecorder) RecordStage(string, time.Duration) {}
func (noopRecorder) RecordTranscript(string, int) {}
func (noopRecorder) RecordLLMTokens(string, string, int) {}
func (noopRecorder) RecordLLMCachedTokens(string, int) {}

var _ Recorder = (*metrics.PrometheusExporter)(nil)
