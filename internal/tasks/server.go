package tasks

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/dispatch"
	"github.com/taskradar/taskradar/internal/domain"
)

// Server runs the asynq worker that executes delayed dispatch tasks
// in-process.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zap.Logger
}

// NewServer wires the task handlers to the dispatch service.
func NewServer(redisOpt asynq.RedisClientOpt, svc *dispatch.Service, log *zap.Logger) *Server {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDispatch: 10,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskStageAdvance, stageAdvanceHandler(svc))
	mux.HandleFunc(TaskQuickBookExpire, expireHandler(svc))

	return &Server{srv: srv, mux: mux, log: log}
}

// Start runs the worker in the background.
func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return err
	}
	s.log.Info("dispatch task worker started", zap.String("queue", QueueDispatch))
	return nil
}

// Shutdown stops the worker.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

// stageAdvanceHandler escalates broadcast visibility. A job that has been
// booked, cancelled, or expired since the task was queued makes the
// callback a no-op; a vanished job is dropped rather than retried.
func stageAdvanceHandler(svc *dispatch.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p StageAdvancePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		err := svc.AdvanceStage(ctx, p.JobID, p.Stage)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
}

func expireHandler(svc *dispatch.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p QuickBookExpirePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		err := svc.ExpireQuickBook(ctx, p.JobID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
}
