package workouts

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

type ListParams struct {
	UserID string
	From   *time.Time
	To     *time.Time
	Page   int
	Size   int
}

type Repo struct {
	db db.Querier
}

// NewRepo accepts either the shared pool or a transaction, so ledger
// writes and personal record maintenance can share one atomic unit.
func NewRepo(q db.Querier) *Repo {
	return &Repo{db: q}
}

func (r *Repo) AddSession(ctx context.Context, session Session) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.addsession")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	err = r.db.QueryRow(
		ctx,
		`INSERT INTO workout_session
				(user_id, routine_id, started_at, duration_seconds, notes, calories, created_at)
				VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
			RETURNING id;`,
		session.UserID, session.RoutineID, session.StartedAt,
		session.DurationSeconds, session.Notes, session.Calories, session.CreatedAt,
	).Scan(&session.ID)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	span.SetAttributes(attribute.Int64("session.id", session.ID))

	for i := range session.Entries {
		entry := &session.Entries[i]
		entry.SessionID = session.ID
		err = r.db.QueryRow(
			ctx,
			`INSERT INTO exercise_entry
					(session_id, position, exercise_name, total_volume, best_set_weight)
					VALUES ($1, $2, $3, $4, $5)
				RETURNING id;`,
			entry.SessionID, entry.Position, entry.ExerciseName,
			entry.TotalVolume, entry.BestSetWeight,
		).Scan(&entry.ID)
		if err != nil {
			return nil, fmt.Errorf("insert entry [%s]: %w", entry.ExerciseName, err)
		}

		for j := range entry.Sets {
			set := &entry.Sets[j]
			err = r.db.QueryRow(
				ctx,
				`INSERT INTO set_record (entry_id, position, reps, weight, set_type)
					VALUES ($1, $2, $3, $4, $5)
				RETURNING id;`,
				entry.ID, set.Position, set.Reps, set.Weight, set.Type,
			).Scan(&set.ID)
			if err != nil {
				return nil, fmt.Errorf("insert set %d [%s]: %w", j, entry.ExerciseName, err)
			}
		}
	}

	return &session, nil
}

func (r *Repo) GetSession(ctx context.Context, userID string, id int64) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.getsession")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("session.id", id))

	session := Session{}
	err = r.db.QueryRow(
		ctx,
		`SELECT id, user_id, COALESCE(routine_id, ''), started_at, duration_seconds, notes, COALESCE(calories, 0), created_at
			FROM workout_session
			WHERE id = $1 AND user_id = $2;`,
		id, userID,
	).Scan(
		&session.ID, &session.UserID, &session.RoutineID, &session.StartedAt,
		&session.DurationSeconds, &session.Notes, &session.Calories, &session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	session.Entries, err = r.SessionEntries(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("session entries: %w", err)
	}

	for i := range session.Entries {
		entry := &session.Entries[i]
		entry.Sets, err = r.entrySets(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("entry sets [%s]: %w", entry.ExerciseName, err)
		}
	}

	return &session, nil
}

// SessionEntries returns the session's entries, without their sets.
func (r *Repo) SessionEntries(ctx context.Context, userID string, sessionID int64) (_ []Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.sessionentries")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT e.id, e.session_id, e.position, e.exercise_name, e.total_volume, e.best_set_weight
			FROM exercise_entry e
			JOIN workout_session s ON e.session_id = s.id
			WHERE e.session_id = $1 AND s.user_id = $2
			ORDER BY e.position;`,
		sessionID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return rows2entries(rows)
}

func (r *Repo) entrySets(ctx context.Context, entryID int64) ([]Set, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT id, position, reps, weight, set_type
			FROM set_record
			WHERE entry_id = $1
			ORDER BY position;`,
		entryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []Set
	for rows.Next() {
		var s Set
		if err := rows.Scan(&s.ID, &s.Position, &s.Reps, &s.Weight, &s.Type); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

func (r *Repo) DeleteSession(ctx context.Context, userID string, id int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.deletesession")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("session.id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout_session WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Repo) List(ctx context.Context, params ListParams) (_ []Session, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("page", params.Page))
	span.SetAttributes(attribute.Int("size", params.Size))

	if params.Page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if params.Size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	err = r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM workout_session
			WHERE user_id = $1
			AND ($2::timestamptz IS NULL OR started_at >= $2)
			AND ($3::timestamptz IS NULL OR started_at <= $3);`,
		params.UserID, params.From, params.To,
	).Scan(&total)
	if err != nil {
		return nil, -1, fmt.Errorf("count sessions: %w", err)
	}

	limit := params.Size
	offset := (params.Page - 1) * params.Size

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, COALESCE(routine_id, ''), started_at, duration_seconds, notes, COALESCE(calories, 0), created_at
			FROM workout_session
			WHERE user_id = $1
			AND ($2::timestamptz IS NULL OR started_at >= $2)
			AND ($3::timestamptz IS NULL OR started_at <= $3)
			ORDER BY started_at DESC
			LIMIT $4 OFFSET $5;`,
		params.UserID, params.From, params.To, limit, offset,
	)
	if err != nil {
		return nil, -1, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.RoutineID, &s.StartedAt,
			&s.DurationSeconds, &s.Notes, &s.Calories, &s.CreatedAt,
		); err != nil {
			return nil, -1, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	return sessions, total, nil
}

// RenameEntries rewrites historical entries from oldName to newName
// across all of the user's sessions. Exercises are keyed by name, so a
// rename is a multi row rewrite rather than a single row update.
func (r *Repo) RenameEntries(ctx context.Context, userID, oldName, newName string) (renamed int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.renameentries")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("old_name", oldName))
	span.SetAttributes(attribute.String("new_name", newName))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE exercise_entry e SET exercise_name = $3
			FROM workout_session s
			WHERE e.session_id = s.id AND s.user_id = $1 AND e.exercise_name = $2;`,
		userID, oldName, newName,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DistinctRoutineExercises collects the distinct exercise names logged
// under a routine. Must run before the routine cascade executes.
func (r *Repo) DistinctRoutineExercises(ctx context.Context, userID, routineID string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.routineexercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("routine.id", routineID))

	rows, err := r.db.Query(
		ctx,
		`SELECT DISTINCT e.exercise_name
			FROM exercise_entry e
			JOIN workout_session s ON e.session_id = s.id
			WHERE s.user_id = $1 AND s.routine_id = $2;`,
		userID, routineID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *Repo) DeleteRoutineSessions(ctx context.Context, userID, routineID string) (deleted int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.deleteroutinesessions")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("routine.id", routineID))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout_session WHERE user_id = $1 AND routine_id = $2;`,
		userID, routineID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func rows2entries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.Position, &e.ExerciseName,
			&e.TotalVolume, &e.BestSetWeight,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make([]Entry, 0)
	}
	return entries, nil
}
