//go:build integration_test || all_tests

package records

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/liftledger/liftledger/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepoSetup(t *testing.T) (*Repo, func()) {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	t.Logf("using postres host: %s", host)

	dbPool, err := db.NewDBPool(timeoutCtx, db.NewDBPoolParams{
		DBHost:         host,
		DBPort:         "5432",
		DBName:         "liftledger_db",
		TracingEnabled: false,
	})
	require.NoError(t, err)

	return NewRepo(dbPool), func() {
		dbPool.Close()
	}
}

func deleteAllRecords(ctx context.Context, t *testing.T, repo *Repo) {
	t.Helper()
	for _, table := range []string{"personal_record", "exercise_entry", "workout_session"} {
		_, err := repo.db.Exec(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
}

func addSessionWithEntry(
	ctx context.Context, t *testing.T, repo *Repo,
	userID, exerciseName string, bestSetWeight float64, startedAt time.Time,
) int64 {
	t.Helper()
	var sessionID int64
	require.NoError(t, repo.db.QueryRow(
		ctx,
		`INSERT INTO workout_session (user_id, started_at) VALUES ($1, $2) RETURNING id;`,
		userID, startedAt,
	).Scan(&sessionID))
	_, err := repo.db.Exec(
		ctx,
		`INSERT INTO exercise_entry (session_id, exercise_name, best_set_weight)
			VALUES ($1, $2, $3);`,
		sessionID, exerciseName, bestSetWeight,
	)
	require.NoError(t, err)
	return sessionID
}

func TestRepo_RecordCRUD(t *testing.T) {
	repo, shutdown := testRepoSetup(t)
	defer shutdown()

	ctx := context.Background()
	deleteAllRecords(ctx, t, repo)

	achievedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "u1", "Squat")
	require.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, repo.Insert(ctx, PersonalRecord{
		UserID: "u1", ExerciseName: "Squat", Weight: 100, AchievedAt: achievedAt,
	}))
	require.NoError(t, repo.Insert(ctx, PersonalRecord{
		UserID: "u1", ExerciseName: "Bench Press", Weight: 60, AchievedAt: achievedAt,
	}))

	pr, err := repo.Get(ctx, "u1", "Squat")
	require.NoError(t, err)
	assert.Equal(t, 100.0, pr.Weight)
	assert.True(t, pr.AchievedAt.Equal(achievedAt))

	require.NoError(t, repo.Update(ctx, PersonalRecord{
		UserID: "u1", ExerciseName: "Squat", Weight: 110, AchievedAt: achievedAt.AddDate(0, 0, 1),
	}))
	pr, err = repo.Get(ctx, "u1", "Squat")
	require.NoError(t, err)
	assert.Equal(t, 110.0, pr.Weight)

	// records are scoped per user
	_, err = repo.Get(ctx, "u2", "Squat")
	require.ErrorIs(t, err, ErrRecordNotFound)

	all, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Bench Press", all[0].ExerciseName)
	assert.Equal(t, "Squat", all[1].ExerciseName)

	require.NoError(t, repo.Delete(ctx, "u1", "Squat"))
	require.ErrorIs(t, repo.Delete(ctx, "u1", "Squat"), ErrRecordNotFound)
	require.ErrorIs(t, repo.Update(ctx, PersonalRecord{
		UserID: "u1", ExerciseName: "Squat", Weight: 1, AchievedAt: achievedAt,
	}), ErrRecordNotFound)
}

func TestRepo_BestSurviving(t *testing.T) {
	repo, shutdown := testRepoSetup(t)
	defer shutdown()

	ctx := context.Background()
	deleteAllRecords(ctx, t, repo)

	earlier := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	later := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

	best, err := repo.BestSurviving(ctx, "u1", "Squat")
	require.NoError(t, err)
	assert.False(t, best.Found)

	addSessionWithEntry(ctx, t, repo, "u1", "Squat", 100, later)
	addSessionWithEntry(ctx, t, repo, "u1", "Squat", 90, earlier)

	best, err = repo.BestSurviving(ctx, "u1", "Squat")
	require.NoError(t, err)
	require.True(t, best.Found)
	assert.Equal(t, 100.0, best.Weight)
	assert.True(t, best.AchievedAt.Equal(later))

	// tie on weight resolves to the earliest session
	addSessionWithEntry(ctx, t, repo, "u1", "Squat", 100, earlier)
	best, err = repo.BestSurviving(ctx, "u1", "Squat")
	require.NoError(t, err)
	require.True(t, best.Found)
	assert.Equal(t, 100.0, best.Weight)
	assert.True(t, best.AchievedAt.Equal(earlier))

	// other users and zero-weight entries never count
	addSessionWithEntry(ctx, t, repo, "u2", "Squat", 200, earlier)
	addSessionWithEntry(ctx, t, repo, "u1", "Plank", 0, earlier)

	best, err = repo.BestSurviving(ctx, "u1", "Squat")
	require.NoError(t, err)
	assert.Equal(t, 100.0, best.Weight)

	best, err = repo.BestSurviving(ctx, "u1", "Plank")
	require.NoError(t, err)
	assert.False(t, best.Found)
}
