package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatdigest/plugin/chat_apps"
	"github.com/hrygo/chatdigest/plugin/chat_apps/channels"
	"github.com/hrygo/chatdigest/server/service/digest"
)

// maxEventSize bounds the accepted OneBot event body.
const maxEventSize = 1 << 20

// handleOneBotEvent accepts a reverse-HTTP event. Recognized commands run on
// their own goroutine; the platform always gets an immediate empty response.
func (s *Server) handleOneBotEvent(c echo.Context) error {
	platform := string(chat_apps.PlatformOneBot)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxEventSize))
	if err != nil {
		s.metrics.RecordWebhook(platform, "read_error")
		return c.NoContent(http.StatusBadRequest)
	}

	headers := make(map[string]string, len(c.Request().Header))
	for k, v := range c.Request().Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	msg, err := s.router.HandleWebhook(c.Request().Context(), chat_apps.PlatformOneBot, headers, body)
	switch {
	case errors.Is(err, channels.ErrIgnoredEvent):
		s.metrics.RecordWebhook(platform, "ignored")
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, channels.ErrInvalidSignature):
		slog.Warn("webhook validation failed", "platform", platform, "error", err)
		s.metrics.RecordWebhook(platform, "rejected")
		return c.NoContent(http.StatusUnauthorized)
	case err != nil:
		slog.Warn("failed to parse webhook message", "platform", platform, "error", err)
		s.metrics.RecordWebhook(platform, "invalid")
		return c.NoContent(http.StatusBadRequest)
	}

	cmd, ok := digest.ParseCommand(msg.Content)
	if !ok {
		s.metrics.RecordWebhook(platform, "ignored")
		return c.NoContent(http.StatusNoContent)
	}

	s.metrics.RecordWebhook(platform, "accepted")
	slog.Info("digest command received",
		"flow", cmd.Flow,
		"chat_id", msg.PlatformChatID,
		"user_id", msg.PlatformUserID,
	)
	s.dispatch(msg, cmd)

	return c.NoContent(http.StatusNoContent)
}

// dispatch runs cmd in the background, bound to the server lifetime rather
// than the request. Commands beyond the digest limit wait for a slot.
func (s *Server) dispatch(msg *chat_apps.IncomingMessage, cmd *digest.Command) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("digest panicked", "panic", r, "flow", cmd.Flow)
			}
		}()
		if err := s.acquireDigestSlot(); err != nil {
			slog.Warn("digest dropped before start", "flow", cmd.Flow, "error", err)
			return
		}
		defer s.digestSemaphore.Release(1)
		s.runner.Run(s.runCtx, msg, cmd)
	}()
}

// acquireDigestSlot waits for a free slot. It fails once the server lifetime
// ends, even if a slot became free at the same moment.
func (s *Server) acquireDigestSlot() error {
	if err := s.digestSemaphore.Acquire(s.runCtx, 1); err != nil {
		return err
	}
	if err := s.runCtx.Err(); err != nil {
		s.digestSemaphore.Release(1)
		return err
	}
	return nil
}
