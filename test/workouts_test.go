package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/liftledger/liftledger/internal/records"
	"github.com/liftledger/liftledger/internal/workouts"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) doRequest(
	ctx context.Context,
	token, method, path string,
	payload any,
) (*http.Response, []byte) {
	var body io.Reader
	if payload != nil {
		payloadJson, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewReader(payloadJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, body)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-LIFTLEDGER-TOKEN", token)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	return resp, respBytes
}

func (s *IntegrationTestSuite) logWorkoutRequest(
	ctx context.Context,
	token, userID string,
	newSession workouts.NewSession,
) workouts.LogResult {
	resp, respBytes := s.doRequest(
		ctx, token, "POST",
		fmt.Sprintf("/users/%s/workouts", userID),
		newSession,
	)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode, "body: %s", respBytes)

	var result workouts.LogResult
	require.NoError(s.T(), json.Unmarshal(respBytes, &result))
	return result
}

func (s *IntegrationTestSuite) listRecordsRequest(
	ctx context.Context,
	token, userID string,
) records.ListResponse {
	resp, respBytes := s.doRequest(
		ctx, token, "GET",
		fmt.Sprintf("/users/%s/records", userID),
		nil,
	)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, "body: %s", respBytes)

	var listResp records.ListResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &listResp))
	return listResp
}

func (s *IntegrationTestSuite) recordsByName(listResp records.ListResponse) map[string]records.PersonalRecord {
	byName := make(map[string]records.PersonalRecord, len(listResp.Records))
	for _, pr := range listResp.Records {
		byName[pr.ExerciseName] = pr
	}
	return byName
}

func benchSession(startedAt time.Time, benchWeight float64) workouts.NewSession {
	return workouts.NewSession{
		StartedAt:       startedAt,
		DurationSeconds: gofakeit.Number(1800, 7200),
		Notes:           gofakeit.Sentence(5),
		Entries: []workouts.NewEntry{
			{
				ExerciseName: "Bench Press",
				Sets: []workouts.NewSet{
					{Reps: 10, Weight: benchWeight - 10},
					{Reps: 5, Weight: benchWeight},
				},
			},
		},
	}
}

func (s *IntegrationTestSuite) TestWorkouts_RecordsFollowTheLedger() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "records-user"
	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)

	// first session sets the record
	result := s.logWorkoutRequest(ctx, token, userID, benchSession(day1, 80))
	assert.Equal(t, []string{"Bench Press"}, result.NewRecords)

	// heavier session on day2 moves it
	result = s.logWorkoutRequest(ctx, token, userID, benchSession(day2, 90))
	assert.Equal(t, []string{"Bench Press"}, result.NewRecords)
	recordSessionID := result.Session.ID

	// equal best later is not a new record
	result = s.logWorkoutRequest(ctx, token, userID, benchSession(day3, 90))
	assert.Empty(t, result.NewRecords)

	byName := s.recordsByName(s.listRecordsRequest(ctx, token, userID))
	require.Contains(t, byName, "Bench Press")
	assert.Equal(t, 90.0, byName["Bench Press"].Weight)
	assert.True(t, byName["Bench Press"].AchievedAt.Equal(day2))

	// deleting the day2 session: the tie from day3 survives and keeps
	// the record at 90
	resp, _ := s.doRequest(
		ctx, token, "DELETE",
		fmt.Sprintf("/users/%s/workouts/%d", userID, recordSessionID),
		nil,
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	byName = s.recordsByName(s.listRecordsRequest(ctx, token, userID))
	require.Contains(t, byName, "Bench Press")
	assert.Equal(t, 90.0, byName["Bench Press"].Weight)
	assert.True(t, byName["Bench Press"].AchievedAt.Equal(day3))
}

func (s *IntegrationTestSuite) TestWorkouts_RenameMergesRecords() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "rename-user"
	day1 := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	session := workouts.NewSession{
		StartedAt: day1,
		Entries: []workouts.NewEntry{
			{
				ExerciseName: "Benchpress",
				Sets:         []workouts.NewSet{{Reps: 5, Weight: 85}},
			},
			{
				ExerciseName: "Bench Press",
				Sets:         []workouts.NewSet{{Reps: 5, Weight: 70}},
			},
		},
	}
	result := s.logWorkoutRequest(ctx, token, userID, session)
	assert.Len(t, result.NewRecords, 2)

	resp, respBytes := s.doRequest(
		ctx, token, "PUT",
		fmt.Sprintf("/users/%s/workouts/exercises/rename", userID),
		workouts.RenameRequest{Renames: []records.Rename{
			{OldName: "Benchpress", NewName: "Bench Press"},
		}},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", respBytes)

	var renameResp workouts.RenameResponse
	require.NoError(t, json.Unmarshal(respBytes, &renameResp))
	assert.Equal(t, int64(1), renameResp.RenamedEntries)

	// the two record rows collapsed into one, higher weight wins
	byName := s.recordsByName(s.listRecordsRequest(ctx, token, userID))
	require.Len(t, byName, 1)
	require.Contains(t, byName, "Bench Press")
	assert.Equal(t, 85.0, byName["Bench Press"].Weight)
}

func (s *IntegrationTestSuite) TestWorkouts_RoutineCascade() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "routine-user"
	day1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	pushSession := benchSession(day1, 100)
	pushSession.RoutineID = "push-day"
	s.logWorkoutRequest(ctx, token, userID, pushSession)

	lighterSession := benchSession(day1.AddDate(0, 0, 1), 80)
	s.logWorkoutRequest(ctx, token, userID, lighterSession)

	byName := s.recordsByName(s.listRecordsRequest(ctx, token, userID))
	assert.Equal(t, 100.0, byName["Bench Press"].Weight)

	// deleting the routine kills the 100kg session, record falls back
	// to the surviving 80kg one
	resp, respBytes := s.doRequest(
		ctx, token, "DELETE",
		fmt.Sprintf("/users/%s/workouts/routine/push-day", userID),
		nil,
	)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", respBytes)

	var deleteResp workouts.DeleteRoutineResponse
	require.NoError(t, json.Unmarshal(respBytes, &deleteResp))
	assert.Equal(t, int64(1), deleteResp.DeletedSessions)

	byName = s.recordsByName(s.listRecordsRequest(ctx, token, userID))
	require.Contains(t, byName, "Bench Press")
	assert.Equal(t, 80.0, byName["Bench Press"].Weight)

	// routine is gone now
	resp, _ = s.doRequest(
		ctx, token, "DELETE",
		fmt.Sprintf("/users/%s/workouts/routine/push-day", userID),
		nil,
	)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestWorkouts_ListPage() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "list-user"
	day1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		s.logWorkoutRequest(ctx, token, userID, benchSession(day1.AddDate(0, 0, i), 60))
	}

	resp, respBytes := s.doRequest(
		ctx, token, "GET",
		fmt.Sprintf("/users/%s/workouts/list/page/1/size/3", userID),
		nil,
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listResp workouts.ListResponse
	require.NoError(t, json.Unmarshal(respBytes, &listResp))
	assert.Equal(t, 4, listResp.Total)
	require.Len(t, listResp.Sessions, 3)
	assert.True(t, listResp.Sessions[0].StartedAt.After(listResp.Sessions[1].StartedAt))
}
