package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/liftledger/liftledger/internal/db"
	"github.com/liftledger/liftledger/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db db.Querier
}

func NewRepo(q db.Querier) *Repo {
	return &Repo{db: q}
}

func (r *Repo) Add(ctx context.Context, notification Notification) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.notifications.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("type", notification.Type))

	var dataJson []byte
	if len(notification.Data) > 0 {
		dataJson, err = json.Marshal(notification.Data)
		if err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO notification (user_id, type, title, message, data)
			VALUES ($1, $2, $3, $4, $5);`,
		notification.UserID, notification.Type,
		notification.Title, notification.Message, dataJson,
	)
	return err
}

func (r *Repo) ListPage(ctx context.Context, params ListPageParams) (_ []Notification, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.notifications.listpage")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM notification WHERE user_id = $1;`,
		params.UserID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	limit := params.Size
	offset := (params.Page - 1) * params.Size
	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, type, title, message, data, read, created_at
			FROM notification
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3;`,
		params.UserID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	notifs := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		var dataJson []byte
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title,
			&n.Message, &dataJson, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		if len(dataJson) > 0 {
			if err := json.Unmarshal(dataJson, &n.Data); err != nil {
				return nil, 0, fmt.Errorf("unmarshal notification data: %w", err)
			}
		}
		notifs = append(notifs, n)
	}
	return notifs, total, rows.Err()
}

func (r *Repo) MarkRead(ctx context.Context, userID string, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.notifications.markread")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE notification SET read = TRUE WHERE user_id = $1 AND id = $2;`,
		userID, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
