package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/liftledger/liftledger/internal/notifications"
	"github.com/liftledger/liftledger/internal/progression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) getProgressionRequest(
	ctx context.Context,
	token, userID string,
) progression.StateResponse {
	resp, respBytes := s.doRequest(
		ctx, token, "GET",
		fmt.Sprintf("/users/%s/progression", userID),
		nil,
	)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, "body: %s", respBytes)

	var stateResp progression.StateResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &stateResp))
	return stateResp
}

func (s *IntegrationTestSuite) listNotificationsRequest(
	ctx context.Context,
	token, userID string,
) notifications.ListResponse {
	resp, respBytes := s.doRequest(
		ctx, token, "GET",
		fmt.Sprintf("/users/%s/notifications/page/1/size/50", userID),
		nil,
	)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, "body: %s", respBytes)

	var listResp notifications.ListResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &listResp))
	return listResp
}

func (s *IntegrationTestSuite) TestProgression_DailyWorkoutCap() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "cap-user"
	day1 := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

	// first workout of the day: workout XP, login bonus and the first
	// workout badge
	result := s.logWorkoutRequest(ctx, token, userID, benchSession(day1, 60))
	award := result.Progression
	assert.Equal(t, 50, award.XPAwarded)
	assert.Equal(t, 10+25, award.BonusXP)
	assert.False(t, award.CapReached)
	assert.Equal(t, 1, award.Streak)
	assert.Equal(t, []string{progression.BadgeFirstWorkout}, award.NewBadges)

	// second workout same day: workout XP only
	result = s.logWorkoutRequest(ctx, token, userID, benchSession(day1.Add(2*time.Hour), 60))
	award = result.Progression
	assert.Equal(t, 50, award.XPAwarded)
	assert.Zero(t, award.BonusXP)
	assert.False(t, award.CapReached)
	assert.Equal(t, 1, award.Streak)

	// third workout same day: cap reached, zero XP, streak untouched
	result = s.logWorkoutRequest(ctx, token, userID, benchSession(day1.Add(4*time.Hour), 60))
	award = result.Progression
	assert.Zero(t, award.XPAwarded)
	assert.Zero(t, award.BonusXP)
	assert.True(t, award.CapReached)
	assert.Equal(t, 1, award.Streak)

	stateResp := s.getProgressionRequest(ctx, token, userID)
	assert.Equal(t, int64(10+50+25+50), stateResp.State.XP)
	assert.Equal(t, 1, stateResp.Level)
	assert.Equal(t, 1, stateResp.State.Streak)
	require.Len(t, stateResp.Badges, 1)
	assert.Equal(t, progression.BadgeFirstWorkout, stateResp.Badges[0].BadgeID)

	// next day the cap resets and the streak extends
	result = s.logWorkoutRequest(ctx, token, userID, benchSession(day1.AddDate(0, 0, 1), 60))
	award = result.Progression
	assert.Equal(t, 50, award.XPAwarded)
	assert.Equal(t, 10, award.BonusXP)
	assert.False(t, award.CapReached)
	assert.Equal(t, 2, award.Streak)

	// a gap resets the streak to 1
	result = s.logWorkoutRequest(ctx, token, userID, benchSession(day1.AddDate(0, 0, 5), 60))
	assert.Equal(t, 1, result.Progression.Streak)

	// users get told about the cap
	notifs := s.listNotificationsRequest(ctx, token, userID)
	var capNotifs, xpNotifs, badgeNotifs int
	for _, n := range notifs.Notifications {
		switch n.Type {
		case "xp_cap_reached":
			capNotifs++
		case "xp_award":
			xpNotifs++
		case "badge_unlocked":
			badgeNotifs++
		}
	}
	assert.Equal(t, 1, capNotifs)
	assert.Equal(t, 4, xpNotifs)
	assert.Equal(t, 1, badgeNotifs)
}

func (s *IntegrationTestSuite) TestProgression_StreakBadge() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "streak-user"
	day1 := time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)

	var lastAward progression.AwardResult
	for i := 0; i < 3; i++ {
		result := s.logWorkoutRequest(ctx, token, userID, benchSession(day1.AddDate(0, 0, i), 60))
		lastAward = result.Progression
	}

	assert.Equal(t, 3, lastAward.Streak)
	assert.Contains(t, lastAward.NewBadges, "streak_3")
	// streak_3 bonus 25 on top of login 10
	assert.Equal(t, 10+25, lastAward.BonusXP)

	stateResp := s.getProgressionRequest(ctx, token, userID)
	badgeIDs := make([]string, 0, len(stateResp.Badges))
	for _, b := range stateResp.Badges {
		badgeIDs = append(badgeIDs, b.BadgeID)
	}
	assert.ElementsMatch(t, []string{progression.BadgeFirstWorkout, "streak_3"}, badgeIDs)
}

func (s *IntegrationTestSuite) TestProgression_LevelUp() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "levelup-user"
	day1 := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)

	// four days of capped workouts: login 10 plus two 50 XP completions
	// per day, with the first workout badge (25) on day one and the
	// streak_3 badge (25) on day three, ending at 490 XP, just under
	// the 500 XP boundary of level 2
	for i := 0; i < 4; i++ {
		day := day1.AddDate(0, 0, i)
		first := s.logWorkoutRequest(ctx, token, userID, benchSession(day, 60)).Progression
		second := s.logWorkoutRequest(ctx, token, userID, benchSession(day.Add(2*time.Hour), 60)).Progression
		assert.False(t, first.LeveledUp)
		assert.False(t, second.LeveledUp)
		assert.Equal(t, 1, second.NewLevel)
	}

	stateResp := s.getProgressionRequest(ctx, token, userID)
	require.Equal(t, int64(490), stateResp.State.XP)
	require.Equal(t, 1, stateResp.Level)

	// day five login bonus and workout XP cross the boundary together
	award := s.logWorkoutRequest(ctx, token, userID, benchSession(day1.AddDate(0, 0, 4), 60)).Progression
	assert.Equal(t, 50, award.XPAwarded)
	assert.Equal(t, 10, award.BonusXP)
	assert.True(t, award.LeveledUp)
	assert.Equal(t, 2, award.NewLevel)

	stateResp = s.getProgressionRequest(ctx, token, userID)
	assert.Equal(t, int64(550), stateResp.State.XP)
	assert.Equal(t, 2, stateResp.Level)

	// the level up gets its own notification, exactly once
	notifs := s.listNotificationsRequest(ctx, token, userID)
	var levelUps []notifications.Notification
	for _, n := range notifs.Notifications {
		if n.Type == "level_up" {
			levelUps = append(levelUps, n)
		}
	}
	require.Len(t, levelUps, 1)
	assert.Equal(t, "Level 2 reached", levelUps[0].Title)
	assert.Equal(t, "2", levelUps[0].Data["level"])
}

func (s *IntegrationTestSuite) TestProgression_Measurement() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "measurement-user"

	resp, respBytes := s.doRequest(
		ctx, token, "POST",
		fmt.Sprintf("/users/%s/progression/measurement", userID),
		progression.MeasurementRequest{Type: "weight"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", respBytes)

	var award progression.AwardResult
	require.NoError(t, json.Unmarshal(respBytes, &award))
	assert.Equal(t, 5, award.XPAwarded)
	assert.Equal(t, 10, award.BonusXP) // first activity of the day
	assert.False(t, award.CapReached)

	// same measurement type again the same day: no XP, still a 200
	resp, respBytes = s.doRequest(
		ctx, token, "POST",
		fmt.Sprintf("/users/%s/progression/measurement", userID),
		progression.MeasurementRequest{Type: "weight"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(respBytes, &award))
	assert.Zero(t, award.XPAwarded)
	assert.True(t, award.CapReached)

	// a different type has its own daily counter
	resp, respBytes = s.doRequest(
		ctx, token, "POST",
		fmt.Sprintf("/users/%s/progression/measurement", userID),
		progression.MeasurementRequest{Type: "body_fat"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(respBytes, &award))
	assert.Equal(t, 5, award.XPAwarded)
	assert.False(t, award.CapReached)

	resp, _ = s.doRequest(
		ctx, token, "POST",
		fmt.Sprintf("/users/%s/progression/measurement", userID),
		progression.MeasurementRequest{Type: "   "},
	)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestProgression_Rewards() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := doLogin(ctx, t)
	userID := "rewards-user"
	day1 := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	s.logWorkoutRequest(ctx, token, userID, benchSession(day1, 60))

	resp, respBytes := s.doRequest(
		ctx, token, "GET",
		fmt.Sprintf("/users/%s/progression/rewards", userID),
		nil,
	)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", respBytes)

	var entries []progression.RewardAuditEntry
	require.NoError(t, json.Unmarshal(respBytes, &entries))
	// daily login, workout completion and the first workout badge
	require.Len(t, entries, 3)
	reasons := make([]string, 0, len(entries))
	for _, entry := range entries {
		assert.Equal(t, progression.RewardTypeXP, entry.Type)
		reasons = append(reasons, entry.Reason)
	}
	assert.ElementsMatch(t, []string{"daily login", "workout completed", "badge unlocked"}, reasons)
}
