package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liftledger/liftledger/internal/db"
	"github.com/liftledger/liftledger/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db db.Querier
}

func NewRepo(q db.Querier) *Repo {
	return &Repo{db: q}
}

// LockState loads the user's progression state under a row lock,
// creating the row first if the user has none yet. Awards for one user
// are serialized on this lock.
func (r *Repo) LockState(ctx context.Context, userID string) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.lockstate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO progression_state (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure progression state: %w", err)
	}

	state := State{}
	err = r.db.QueryRow(
		ctx,
		`SELECT user_id, xp, streak, last_activity_date, updated_at
			FROM progression_state
			WHERE user_id = $1
			FOR UPDATE;`,
		userID,
	).Scan(&state.UserID, &state.XP, &state.Streak, &state.LastActivityDate, &state.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock progression state: %w", err)
	}
	return &state, nil
}

func (r *Repo) GetState(ctx context.Context, userID string) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.getstate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	state := State{}
	err = r.db.QueryRow(
		ctx,
		`SELECT user_id, xp, streak, last_activity_date, updated_at
			FROM progression_state
			WHERE user_id = $1;`,
		userID,
	).Scan(&state.UserID, &state.XP, &state.Streak, &state.LastActivityDate, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// never-seen user reads as a zero state
		return &State{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progression state: %w", err)
	}
	return &state, nil
}

func (r *Repo) SaveState(ctx context.Context, state *State) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.savestate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(
		ctx,
		`UPDATE progression_state
			SET xp = $2, streak = $3, last_activity_date = $4, updated_at = now()
			WHERE user_id = $1;`,
		state.UserID, state.XP, state.Streak, state.LastActivityDate,
	)
	return err
}

// UnlockBadge inserts the badge unlock, returning false when the user
// already holds the badge. The primary key makes the unlock one-time.
func (r *Repo) UnlockBadge(ctx context.Context, userID, badgeID string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.unlockbadge")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("badge_id", badgeID))

	tag, err := r.db.Exec(
		ctx,
		`INSERT INTO unlocked_badge (user_id, badge_id) VALUES ($1, $2)
			ON CONFLICT (user_id, badge_id) DO NOTHING;`,
		userID, badgeID,
	)
	if err != nil {
		return false, fmt.Errorf("unlock badge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) ListBadges(ctx context.Context, userID string) (_ []UnlockedBadge, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.listbadges")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT badge_id, unlocked_at
			FROM unlocked_badge
			WHERE user_id = $1
			ORDER BY unlocked_at;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	unlocked := make([]UnlockedBadge, 0)
	for rows.Next() {
		var badge UnlockedBadge
		if err := rows.Scan(&badge.BadgeID, &badge.UnlockedAt); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, badge)
	}
	return unlocked, rows.Err()
}

// IncrementDailyCounter bumps the per-day counter and returns its new
// value. The caller compares against the cap; the counter row is the
// source of truth for cap enforcement, not the audit trail.
func (r *Repo) IncrementDailyCounter(
	ctx context.Context,
	userID string, day time.Time, counterType string,
) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.incrementcounter")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("counter_type", counterType))

	var count int
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO reward_counter (user_id, day, counter_type, count)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (user_id, day, counter_type)
			DO UPDATE SET count = reward_counter.count + 1
			RETURNING count;`,
		userID, day, counterType,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment daily counter: %w", err)
	}
	return count, nil
}

func (r *Repo) AddAudit(ctx context.Context, entry RewardAuditEntry) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.addaudit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO reward_audit (user_id, type, reason, amount)
			VALUES ($1, $2, $3, $4);`,
		entry.UserID, entry.Type, entry.Reason, entry.Amount,
	)
	return err
}

func (r *Repo) ListAudit(ctx context.Context, userID string, limit int) (_ []RewardAuditEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progression.listaudit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, type, reason, amount, created_at
			FROM reward_audit
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2;`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	entries := make([]RewardAuditEntry, 0)
	for rows.Next() {
		var entry RewardAuditEntry
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Type,
			&entry.Reason, &entry.Amount, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
