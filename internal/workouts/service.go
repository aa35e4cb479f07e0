package workouts

import (
	"context"
	"fmt"
	"time"

	"github.com/liftledger/liftledger/internal/progression"
	"github.com/liftledger/liftledger/internal/records"
	"github.com/liftledger/liftledger/internal/telemetry/metrics"
	"github.com/liftledger/liftledger/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type progressionEngine interface {
	AwardForWorkoutCompletion(ctx context.Context, userID string, sessionDate time.Time) (progression.AwardResult, error)
}

// LogResult is the outcome of logging one workout: the stored session
// plus the informational side effects. Progression is zeroed when the
// award failed, the session write alone decides success.
type LogResult struct {
	Session     *Session                `json:"session"`
	NewRecords  []string                `json:"newRecords,omitempty"`
	Progression progression.AwardResult `json:"progression"`
}

// Service owns the ledger transaction: every mutation runs session
// write and personal record maintenance as one atomic unit, then hands
// off to the progression engine outside of it.
type Service struct {
	pool         *pgxpool.Pool
	engine       progressionEngine
	recordsCache *records.Cache
	metrics      *metrics.Manager
}

func NewService(
	pool *pgxpool.Pool,
	engine progressionEngine,
	recordsCache *records.Cache,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		pool:         pool,
		engine:       engine,
		recordsCache: recordsCache,
		metrics:      metricsManager,
	}
}

func (s *Service) LogWorkout(ctx context.Context, newSession NewSession) (_ *LogResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.logworkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := newSession.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSession, err)
	}
	session := newSession.Build()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				log.Errorf("log workout, rollback: %s", rollbackErr)
			}
		}
	}()

	added, err := NewRepo(tx).AddSession(ctx, session)
	if err != nil {
		return nil, err
	}

	maintainer := records.NewMaintainer(records.NewRepo(tx))
	newRecords, err := maintainer.OnSessionLogged(
		ctx, added.UserID, entryBests(added.Entries), added.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("maintain records: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.metrics.CounterWorkoutsLogged.Inc()
	if len(newRecords) > 0 {
		s.metrics.CounterNewPersonalRecords.Add(float64(len(newRecords)))
		s.recordsCache.Invalidate(added.UserID)
	}
	span.SetAttributes(attribute.Int("new_records", len(newRecords)))

	// the ledger write is committed at this point: progression failures
	// degrade to a zero outcome instead of failing the request
	award, awardErr := s.engine.AwardForWorkoutCompletion(ctx, added.UserID, added.StartedAt)
	if awardErr != nil {
		log.Errorf("award workout completion for user [%s]: %s", added.UserID, awardErr)
		award = progression.AwardResult{}
	}

	return &LogResult{
		Session:     added,
		NewRecords:  newRecords,
		Progression: award,
	}, nil
}

func (s *Service) DeleteWorkout(ctx context.Context, userID string, sessionID int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.deleteworkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("session.id", sessionID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				log.Errorf("delete workout, rollback: %s", rollbackErr)
			}
		}
	}()

	repo := NewRepo(tx)

	// entries must be read before the cascade wipes them
	entries, err := repo.SessionEntries(ctx, userID, sessionID)
	if err != nil {
		return fmt.Errorf("session entries: %w", err)
	}

	if err := repo.DeleteSession(ctx, userID, sessionID); err != nil {
		return err
	}

	maintainer := records.NewMaintainer(records.NewRepo(tx))
	if err := maintainer.OnSessionDeleted(ctx, userID, entryBests(entries)); err != nil {
		return fmt.Errorf("maintain records: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.metrics.CounterWorkoutsDeleted.Inc()
	s.recordsCache.Invalidate(userID)
	return nil
}

// RenameExercises rewrites historical entries and record rows for each
// old name to new name pair, all in one transaction.
func (s *Service) RenameExercises(
	ctx context.Context,
	userID string,
	renames []records.Rename,
) (renamed int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.renameexercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				log.Errorf("rename exercises, rollback: %s", rollbackErr)
			}
		}
	}()

	repo := NewRepo(tx)
	for _, rename := range renames {
		if rename.OldName == rename.NewName {
			continue
		}
		count, err := repo.RenameEntries(ctx, userID, rename.OldName, rename.NewName)
		if err != nil {
			return 0, fmt.Errorf("rename entries [%s -> %s]: %w", rename.OldName, rename.NewName, err)
		}
		renamed += count
	}

	maintainer := records.NewMaintainer(records.NewRepo(tx))
	if err := maintainer.OnExercisesRenamed(ctx, userID, renames); err != nil {
		return 0, fmt.Errorf("maintain records: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	s.recordsCache.Invalidate(userID)
	return renamed, nil
}

// DeleteRoutine removes all of the user's sessions logged under the
// routine. Distinct exercise names are collected before the cascade,
// each name rescanned exactly once against the surviving ledger.
func (s *Service) DeleteRoutine(ctx context.Context, userID, routineID string) (deleted int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.deleteroutine")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("routine.id", routineID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				log.Errorf("delete routine, rollback: %s", rollbackErr)
			}
		}
	}()

	repo := NewRepo(tx)

	names, err := repo.DistinctRoutineExercises(ctx, userID, routineID)
	if err != nil {
		return 0, fmt.Errorf("routine exercises: %w", err)
	}

	deleted, err = repo.DeleteRoutineSessions(ctx, userID, routineID)
	if err != nil {
		return 0, fmt.Errorf("delete routine sessions: %w", err)
	}
	if deleted == 0 {
		err = ErrRoutineNotFound
		return 0, err
	}

	maintainer := records.NewMaintainer(records.NewRepo(tx))
	for _, name := range names {
		if err := maintainer.RescanExercise(ctx, userID, name); err != nil {
			return 0, fmt.Errorf("maintain records: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	s.metrics.CounterWorkoutsDeleted.Add(float64(deleted))
	s.recordsCache.Invalidate(userID)
	return deleted, nil
}

func (s *Service) GetWorkout(ctx context.Context, userID string, sessionID int64) (*Session, error) {
	return NewRepo(s.pool).GetSession(ctx, userID, sessionID)
}

func (s *Service) ListWorkouts(ctx context.Context, params ListParams) ([]Session, int, error) {
	return NewRepo(s.pool).List(ctx, params)
}

func entryBests(entries []Entry) []records.EntryBest {
	bests := make([]records.EntryBest, 0, len(entries))
	for _, e := range entries {
		bests = append(bests, records.EntryBest{
			ExerciseName:  e.ExerciseName,
			BestSetWeight: e.BestSetWeight,
		})
	}
	return bests
}
