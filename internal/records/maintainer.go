package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/liftledger/liftledger/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type recordsRepo interface {
	Get(ctx context.Context, userID, exerciseName string) (*PersonalRecord, error)
	Insert(ctx context.Context, pr PersonalRecord) error
	Update(ctx context.Context, pr PersonalRecord) error
	Delete(ctx context.Context, userID, exerciseName string) error
	BestSurviving(ctx context.Context, userID, exerciseName string) (SurvivingBest, error)
}

// Maintainer keeps personal records consistent with the workout
// ledger. It is only ever invoked as a side effect of ledger
// mutations, inside the ledger's transaction: any error here rolls
// back the whole triggering operation.
type Maintainer struct {
	repo recordsRepo
}

func NewMaintainer(repo recordsRepo) *Maintainer {
	return &Maintainer{repo: repo}
}

// OnSessionLogged runs the cheap insert path: per entry, upsert the
// record when the new best strictly exceeds the stored one. Returns
// the exercise names for which a new record was set.
func (m *Maintainer) OnSessionLogged(
	ctx context.Context,
	userID string,
	entries []EntryBest,
	sessionDate time.Time,
) (newRecords []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.maintainer.onsessionlogged")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	// a session can hold the same exercise more than once (supersets),
	// keep only the best per name
	for name, best := range bestPerExercise(entries) {
		current, err := m.repo.Get(ctx, userID, name)
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("get record [%s]: %w", name, err)
		}

		if current == nil {
			if err := m.repo.Insert(ctx, PersonalRecord{
				UserID:       userID,
				ExerciseName: name,
				Weight:       best,
				AchievedAt:   sessionDate,
			}); err != nil {
				return nil, fmt.Errorf("insert record [%s]: %w", name, err)
			}
			newRecords = append(newRecords, name)
			continue
		}

		if best > current.Weight {
			if err := m.repo.Update(ctx, PersonalRecord{
				UserID:       userID,
				ExerciseName: name,
				Weight:       best,
				AchievedAt:   sessionDate,
			}); err != nil {
				return nil, fmt.Errorf("update record [%s]: %w", name, err)
			}
			newRecords = append(newRecords, name)
		}
	}

	sort.Strings(newRecords)
	span.SetAttributes(attribute.Int("new_records", len(newRecords)))
	return newRecords, nil
}

// OnSessionDeleted runs the expensive delete path: per distinct
// exercise name of the deleted session, rescan the surviving history
// when the deleted session could have held the record. Equality is
// checked by weight value, not by session id, so a coincidental tie
// with another session still triggers a (safe, redundant) rescan.
func (m *Maintainer) OnSessionDeleted(ctx context.Context, userID string, entries []EntryBest) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.maintainer.onsessiondeleted")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	for name, deletedBest := range bestPerExercise(entries) {
		current, err := m.repo.Get(ctx, userID, name)
		if errors.Is(err, ErrRecordNotFound) {
			// the deleted session was never the record holder
			continue
		}
		if err != nil {
			return fmt.Errorf("get record [%s]: %w", name, err)
		}

		if current.Weight != deletedBest {
			continue
		}

		if err := m.RescanExercise(ctx, userID, name); err != nil {
			return err
		}
	}
	return nil
}

// RescanExercise recomputes the record for one exercise name from the
// surviving ledger entries: update in place when a best remains,
// delete the row when none does. Also used directly for routine
// cascades, once per distinct name, against the post cascade state.
func (m *Maintainer) RescanExercise(ctx context.Context, userID, exerciseName string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.maintainer.rescan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise_name", exerciseName))

	best, err := m.repo.BestSurviving(ctx, userID, exerciseName)
	if err != nil {
		return fmt.Errorf("rescan [%s]: %w", exerciseName, err)
	}

	if !best.Found {
		log.Debugf("no surviving entries for [%s] of user [%s], dropping record", exerciseName, userID)
		if err := m.repo.Delete(ctx, userID, exerciseName); err != nil && !errors.Is(err, ErrRecordNotFound) {
			return fmt.Errorf("delete record [%s]: %w", exerciseName, err)
		}
		return nil
	}

	err = m.repo.Update(ctx, PersonalRecord{
		UserID:       userID,
		ExerciseName: exerciseName,
		Weight:       best.Weight,
		AchievedAt:   best.AchievedAt,
	})
	if errors.Is(err, ErrRecordNotFound) {
		// record row can be legitimately absent here (e.g. a rescan
		// right after a rename introduced this name)
		return m.repo.Insert(ctx, PersonalRecord{
			UserID:       userID,
			ExerciseName: exerciseName,
			Weight:       best.Weight,
			AchievedAt:   best.AchievedAt,
		})
	}
	if err != nil {
		return fmt.Errorf("update record [%s]: %w", exerciseName, err)
	}
	return nil
}

// OnExercisesRenamed moves record rows from old to new names. When a
// record already exists under the new name, the rows merge keeping the
// higher weight (on equal weights, the earlier date) - the only merge
// that keeps the stored weight equal to the max over all entries now
// carrying the new name. The old name row is always removed.
func (m *Maintainer) OnExercisesRenamed(ctx context.Context, userID string, renames []Rename) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.maintainer.onexercisesrenamed")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	for _, rename := range renames {
		if rename.OldName == rename.NewName {
			continue
		}

		oldRecord, err := m.repo.Get(ctx, userID, rename.OldName)
		if errors.Is(err, ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get record [%s]: %w", rename.OldName, err)
		}

		newRecord, err := m.repo.Get(ctx, userID, rename.NewName)
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return fmt.Errorf("get record [%s]: %w", rename.NewName, err)
		}

		if err := m.repo.Delete(ctx, userID, rename.OldName); err != nil {
			return fmt.Errorf("delete record [%s]: %w", rename.OldName, err)
		}

		if newRecord == nil {
			if err := m.repo.Insert(ctx, PersonalRecord{
				UserID:       userID,
				ExerciseName: rename.NewName,
				Weight:       oldRecord.Weight,
				AchievedAt:   oldRecord.AchievedAt,
			}); err != nil {
				return fmt.Errorf("insert record [%s]: %w", rename.NewName, err)
			}
			continue
		}

		winner := *newRecord
		if oldRecord.Weight > newRecord.Weight ||
			(oldRecord.Weight == newRecord.Weight && oldRecord.AchievedAt.Before(newRecord.AchievedAt)) {
			winner = *oldRecord
		}
		if err := m.repo.Update(ctx, PersonalRecord{
			UserID:       userID,
			ExerciseName: rename.NewName,
			Weight:       winner.Weight,
			AchievedAt:   winner.AchievedAt,
		}); err != nil {
			return fmt.Errorf("merge record [%s]: %w", rename.NewName, err)
		}
	}
	return nil
}

func bestPerExercise(entries []EntryBest) map[string]float64 {
	best := make(map[string]float64)
	for _, e := range entries {
		if e.BestSetWeight <= 0 {
			continue
		}
		if e.BestSetWeight > best[e.ExerciseName] {
			best[e.ExerciseName] = e.BestSetWeight
		}
	}
	return best
}
