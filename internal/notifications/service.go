package notifications

import (
	"context"

	"github.com/liftledger/liftledger/internal/telemetry/tracing"
)

type repo interface {
	Add(ctx context.Context, notification Notification) error
	ListPage(ctx context.Context, params ListPageParams) ([]Notification, int, error)
	MarkRead(ctx context.Context, userID string, id int) error
}

type Service struct {
	repo repo
}

func NewService(repo repo) *Service {
	return &Service{repo: repo}
}

// Record satisfies the progression engine's notifier.
func (s *Service) Record(
	ctx context.Context,
	userID, notifType, title, message string,
	data map[string]string,
) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notifications.record")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return s.repo.Add(ctx, Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    data,
	})
}

func (s *Service) ListPage(ctx context.Context, params ListPageParams) (_ []Notification, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notifications.listpage")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return s.repo.ListPage(ctx, params)
}

func (s *Service) MarkRead(ctx context.Context, userID string, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notifications.markread")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return s.repo.MarkRead(ctx, userID, id)
}
