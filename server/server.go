// Package server hosts the OneBot event webhook and operational endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/chatdigest/ai/configloader"
	"github.com/hrygo/chatdigest/ai/core/llm"
	"github.com/hrygo/chatdigest/ai/metrics"
	"github.com/hrygo/chatdigest/ai/render"
	"github.com/hrygo/chatdigest/ai/summary"
	"github.com/hrygo/chatdigest/internal/profile"
	"github.com/hrygo/chatdigest/internal/version"
	"github.com/hrygo/chatdigest/plugin/chat_apps"
	"github.com/hrygo/chatdigest/plugin/chat_apps/channels"
	"github.com/hrygo/chatdigest/plugin/chat_apps/channels/onebot"
	"github.com/hrygo/chatdigest/plugin/chat_apps/transcript"
	"github.com/hrygo/chatdigest/server/auth"
	"github.com/hrygo/chatdigest/server/service/digest"
)

const defaultMaxConcurrentDigests = 4

// CommandRunner executes a parsed digest command to completion.
type CommandRunner interface {
	Run(ctx context.Context, msg *chat_apps.IncomingMessage, cmd *digest.Command)
}

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	router     *channels.ChannelRouter
	runner     CommandRunner
	metrics    *metrics.PrometheusExporter
	llm        llm.Service

	// digestSemaphore limits concurrently running digests.
	digestSemaphore *semaphore.Weighted

	// runCtx outlives individual requests; invocations are bound to it.
	runCtx    context.Context
	runCancel context.CancelFunc
	inflight  sync.WaitGroup
}

// NewServer wires the OneBot channel, the digest pipeline and the HTTP routes.
func NewServer(ctx context.Context, profile *profile.Profile) (*Server, error) {
	channel, err := onebot.NewChannel(&onebot.Config{
		BaseURL:     profile.OneBotURL,
		AccessToken: profile.OneBotAccessToken,
		Secret:      profile.OneBotSecret,
		Timeout:     profile.OneBotTimeoutDuration(),
		UserAgent:   version.UserAgent(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create onebot channel: %w", err)
	}
	router := channels.NewChannelRouter()
	router.Register(channel)

	llmService, err := llm.NewService(&llm.Config{
		Provider:    profile.ALLMProvider,
		Model:       profile.ALLMModel,
		APIKey:      profile.ALLMAPIKey,
		BaseURL:     profile.ALLMBaseURL,
		MaxTokens:   profile.ALLMMaxTokens,
		Temperature: profile.ALLMTemperature,
		Timeout:     profile.ALLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM service: %w", err)
	}

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	loader := configloader.NewLoader(profile.Data)

	runner := digest.NewService(digest.Deps{
		Transcripts: transcript.NewBuilder(channel, channel, profile.Location()),
		Summarizer:  summary.NewSummarizer(llmService, loader, profile.PromptFile),
		Renderer: render.NewSummaryRenderer(render.NewHTTPRenderer(render.HTTPConfig{
			Endpoint:  profile.T2IEndpoint,
			Timeout:   profile.T2ITimeoutDuration(),
			UserAgent: version.UserAgent(),
		})),
		Admins:   auth.NewAdminGate(loader, profile.AdminFile),
		Replier:  digest.NewChannelReplier(router, chat_apps.PlatformOneBot),
		Recorder: exporter,
		Model:    profile.ALLMModel,
	})

	s := newServer(ctx, profile, router, runner, exporter)
	s.llm = llmService
	return s, nil
}

func newServer(ctx context.Context, profile *profile.Profile, router *channels.ChannelRouter, runner CommandRunner, exporter *metrics.PrometheusExporter) *Server {
	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	limit := int64(profile.MaxConcurrentDigests)
	if limit <= 0 {
		limit = defaultMaxConcurrentDigests
	}
	s := &Server{
		Profile:         profile,
		echoServer:      echo.New(),
		router:          router,
		runner:          runner,
		metrics:         exporter,
		digestSemaphore: semaphore.NewWeighted(limit),
		runCtx:          runCtx,
		runCancel:       runCancel,
	}
	s.echoServer.HideBanner = true
	s.echoServer.HidePort = true
	s.echoServer.Use(middleware.Recover())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	s.echoServer.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	s.echoServer.POST("/onebot/event", s.handleOneBotEvent)
}

// Start begins listening in the background and returns once the socket is bound.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.echoServer.Listener = listener

	if s.llm != nil {
		go s.llm.Warmup(ctx)
	}

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()

	slog.Info("server started", "address", listener.Addr().String())
	return nil
}

// Shutdown stops accepting events, then waits for in-flight digests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown echo server", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("abandoning in-flight digests", "error", ctx.Err())
	}
	s.runCancel()

	if err := s.router.Close(); err != nil {
		slog.Error("failed to close channels", "error", err)
	}

	slog.Info("server stopped properly")
}
