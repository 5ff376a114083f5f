// Package server assembles the services and serves the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/bonsaihq/bonsai/internal/profile"
	"github.com/bonsaihq/bonsai/plugin/ai"
	"github.com/bonsaihq/bonsai/plugin/ai/executor"
	"github.com/bonsaihq/bonsai/plugin/ai/interpreter"
	"github.com/bonsaihq/bonsai/plugin/ai/router"
	apiv1 "github.com/bonsaihq/bonsai/server/router/api/v1"
	"github.com/bonsaihq/bonsai/server/service/chat"
	"github.com/bonsaihq/bonsai/server/service/conversation"
	"github.com/bonsaihq/bonsai/server/service/events"
	"github.com/bonsaihq/bonsai/server/service/hooks"
	"github.com/bonsaihq/bonsai/server/service/recurrence"
	"github.com/bonsaihq/bonsai/server/service/reminder"
	"github.com/bonsaihq/bonsai/server/service/session"
	"github.com/bonsaihq/bonsai/store"
)

// Server is the main server of bonsai.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	scheduler  *reminder.Scheduler
	sweeper    *events.Sweeper
	taskHooks  *hooks.TaskHooks
}

// NewServer wires the service graph and mounts the API routes.
func NewServer(_ context.Context, p *profile.Profile, s *store.Store) (*Server, error) {
	hub := session.NewHub()
	reminders := reminder.NewService(s, hub)
	rec := recurrence.NewService(s)
	publisher := events.NewPublisher(s, p.BrokerEndpoint)
	taskHooks := hooks.New(publisher, reminders, rec)
	conversations := conversation.NewService(s)
	exec := executor.New(s, taskHooks)

	// A typed nil would defeat the availability check downstream, so the
	// interpreter is only assigned when AI is actually usable.
	var interp chat.NLInterpreter
	if cfg := ai.NewConfigFromProfile(p); cfg.Enabled {
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid AI configuration")
		}
		llm, err := ai.NewLLMService(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create LLM service")
		}
		interp = interpreter.New(llm, cfg.Timeout)
	} else {
		slog.Warn("AI is disabled, chat runs in fallback mode")
	}

	thresholds := router.Thresholds{High: p.HighThreshold, Low: p.LowThreshold}
	chatService := chat.NewService(s, conversations, interp, exec, nil, thresholds)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	apiService := apiv1.NewAPIV1Service(p, s, chatService, conversations, reminders, rec, hub, taskHooks)
	apiService.Register(e)

	return &Server{
		Profile:    p,
		Store:      s,
		echoServer: e,
		scheduler:  reminder.NewScheduler(reminders, p.ReminderPollInterval),
		sweeper:    events.NewSweeper(publisher, p.SweepInterval, p.EventRetention),
		taskHooks:  taskHooks,
	}, nil
}

// Start launches the background runners and serves HTTP until the
// context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.scheduler.Start(ctx)
	s.sweeper.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
		slog.Info("server listening", "addr", addr)
		if err := s.echoServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to start echo server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// Shutdown drains in-flight requests and stops the background runners.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down echo server", "error", err)
	}

	s.scheduler.Stop()
	s.sweeper.Stop()
	s.taskHooks.Wait()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}

	slog.Info("bonsai stopped")
}
