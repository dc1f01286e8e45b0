package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medekzamen/medbot-api/internal/models"
	appErrors "github.com/medekzamen/medbot-api/pkg/errors"
	"github.com/medekzamen/medbot-api/pkg/jobs"
)

// Sender is the outbound Telegram surface a broadcast needs.
type Sender interface {
	CopyMessage(toChatID, fromChatID int64, messageID int) error
	SendText(chatID int64, text string) error
}

type audienceRepository interface {
	ListByAudience(ctx context.Context, filter models.AudienceFilter) ([]int64, error)
}

// BroadcastRequest describes one admin broadcast: the source message to copy
// and the audience filter. Nil filter fields mean "everyone".
type BroadcastRequest struct {
	AdminChatID int64
	FromChatID  int64
	MessageID   int
	Filter      models.AudienceFilter
}

// BroadcastResult summarises a finished broadcast.
type BroadcastResult struct {
	Sent  int
	Total int
}

// BroadcastService fans one message out to the filtered user base, one
// recipient at a time with a fixed delay, off the conversation path via a
// single-worker queue. Per-recipient failures are counted and logged but
// never abort the run.
type BroadcastService struct {
	users  audienceRepository
	sender Sender
	delay  time.Duration
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewBroadcastService constructs the service and its worker queue.
func NewBroadcastService(users audienceRepository, sender Sender, delay time.Duration, logger *zap.Logger) *BroadcastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BroadcastService{users: users, sender: sender, delay: delay, logger: logger}
	s.queue = jobs.NewQueue("broadcast", s.handleJob, jobs.QueueConfig{
		Workers: 1,
		Logger:  logger,
	})
	return s
}

// Start launches the broadcast worker.
func (s *BroadcastService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker.
func (s *BroadcastService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules a broadcast. The admin receives a summary message when
// the run finishes.
func (s *BroadcastService) Enqueue(req BroadcastRequest) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "broadcast",
		Payload: req,
	})
}

// Run executes a broadcast synchronously and returns the delivery summary.
func (s *BroadcastService) Run(ctx context.Context, req BroadcastRequest) (BroadcastResult, error) {
	recipients, err := s.users.ListByAudience(ctx, req.Filter)
	if err != nil {
		return BroadcastResult{}, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load broadcast audience")
	}

	result := BroadcastResult{Total: len(recipients)}
	for _, chatID := range recipients {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.sender.CopyMessage(chatID, req.FromChatID, req.MessageID); err != nil {
			// Blocked bots and the like; count it and keep going.
			s.logger.Sugar().Warnw("broadcast send failed", "chat_id", chatID, "error", err)
		} else {
			result.Sent++
		}

		if s.delay > 0 {
			time.Sleep(s.delay)
		}
	}

	return result, nil
}

func (s *BroadcastService) handleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(BroadcastRequest)
	if !ok {
		return fmt.Errorf("unexpected broadcast payload %T", job.Payload)
	}

	result, err := s.Run(ctx, req)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("📢 Рассылка завершена: отправлено %d из %d.", result.Sent, result.Total)
	if err := s.sender.SendText(req.AdminChatID, summary); err != nil {
		s.logger.Sugar().Warnw("broadcast summary send failed", "chat_id", req.AdminChatID, "error", err)
	}
	return nil
}
