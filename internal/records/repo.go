package records

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

// NewRepo accepts either the shared pool or a transaction; the
// maintainer always runs inside the ledger transaction, the read
// handlers use the pool.
func NewRepo(q db.Querier) *Repo {
	return &Repo{db: q}
}

func (r *Repo) Get(ctx context.Context, userID, exerciseName string) (_ *PersonalRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise_name", exerciseName))

	pr := PersonalRecord{}
	err = r.db.QueryRow(
		ctx,
		`SELECT user_id, exercise_name, weight, achieved_at
			FROM personal_record
			WHERE user_id = $1 AND exercise_name = $2;`,
		userID, exerciseName,
	).Scan(&pr.UserID, &pr.ExerciseName, &pr.Weight, &pr.AchievedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get personal record: %w", err)
	}
	return &pr, nil
}

func (r *Repo) List(ctx context.Context, userID string) (_ []PersonalRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT user_id, exercise_name, weight, achieved_at
			FROM personal_record
			WHERE user_id = $1
			ORDER BY exercise_name;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	records := make([]PersonalRecord, 0)
	for rows.Next() {
		var pr PersonalRecord
		if err := rows.Scan(&pr.UserID, &pr.ExerciseName, &pr.Weight, &pr.AchievedAt); err != nil {
			return nil, err
		}
		records = append(records, pr)
	}
	return records, rows.Err()
}

func (r *Repo) Insert(ctx context.Context, pr PersonalRecord) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO personal_record (user_id, exercise_name, weight, achieved_at)
			VALUES ($1, $2, $3, $4);`,
		pr.UserID, pr.ExerciseName, pr.Weight, pr.AchievedAt,
	)
	return err
}

func (r *Repo) Update(ctx context.Context, pr PersonalRecord) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE personal_record SET weight = $3, achieved_at = $4
			WHERE user_id = $1 AND exercise_name = $2;`,
		pr.UserID, pr.ExerciseName, pr.Weight, pr.AchievedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, userID, exerciseName string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise_name", exerciseName))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM personal_record WHERE user_id = $1 AND exercise_name = $2;`,
		userID, exerciseName,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SurvivingBest holds the rescan result over the user's remaining
// entries for one exercise name.
type SurvivingBest struct {
	Weight     float64
	AchievedAt time.Time
	Found      bool
}

// BestSurviving finds the maximum best set weight across all surviving
// entries with the given exercise name. Ties on weight resolve to the
// earliest session date.
func (r *Repo) BestSurviving(ctx context.Context, userID, exerciseName string) (_ SurvivingBest, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.bestsurviving")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise_name", exerciseName))

	best := SurvivingBest{}
	err = r.db.QueryRow(
		ctx,
		`SELECT e.best_set_weight, s.started_at
			FROM exercise_entry e
			JOIN workout_session s ON e.session_id = s.id
			WHERE s.user_id = $1 AND e.exercise_name = $2 AND e.best_set_weight > 0
			ORDER BY e.best_set_weight DESC, s.started_at ASC
			LIMIT 1;`,
		userID, exerciseName,
	).Scan(&best.Weight, &best.AchievedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SurvivingBest{}, nil
	}
	if err != nil {
		return SurvivingBest{}, fmt.Errorf("best surviving: %w", err)
	}

	best.Found = true
	return best, nil
}
