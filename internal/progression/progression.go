package progression

import (
	"time"
)

// State is the per-user progression aggregate. Level is never part of
// it: level is always derived from XP (see LevelForXP), so the two can
// not drift apart.
type State struct {
	UserID           string     `json:"userId"`
	XP               int64      `json:"xp"`
	Streak           int        `json:"streak"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type RewardType string

const (
	RewardTypeXP         RewardType = "xp"
	RewardTypeCapReached RewardType = "cap_reached"
)

// Award reasons, also used as audit entry reasons.
const (
	ReasonDailyLogin       = "daily login"
	ReasonWorkoutCompleted = "workout completed"
	ReasonMeasurement      = "measurement logged"
	ReasonBadgeUnlocked    = "badge unlocked"
)

// Daily cap counter types. Measurement counters are suffixed with the
// measurement type, one counter per type per day.
const (
	CounterWorkoutCompletion = "workout_completion"
	counterMeasurementPrefix = "measurement:"
)

// RewardAuditEntry is an immutable record of an XP grant or a cap hit,
// kept for user-facing history. Cap enforcement reads the reward
// counters, never these rows.
type RewardAuditEntry struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"userId"`
	Type      RewardType `json:"type"`
	Reason    string     `json:"reason"`
	Amount    int        `json:"amount"`
	CreatedAt time.Time  `json:"createdAt"`
}

type UnlockedBadge struct {
	BadgeID    string    `json:"badgeId"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// AwardResult is the progression outcome reported back to the caller.
// It is informational: a zero result never fails the triggering
// operation.
type AwardResult struct {
	// XPAwarded is the XP granted for the triggering activity itself
	// (zero when a cap was hit).
	XPAwarded int `json:"xpAwarded"`
	// BonusXP is login and badge XP granted alongside it.
	BonusXP    int      `json:"bonusXp"`
	CapReached bool     `json:"capReached"`
	LeveledUp  bool     `json:"leveledUp"`
	NewLevel   int      `json:"newLevel"`
	Streak     int      `json:"streak"`
	NewBadges  []string `json:"newBadges,omitempty"`
}

type Config struct {
	XPDailyLogin       int
	XPWorkoutCompleted int
	XPMeasurement      int
	// DailyWorkoutXPCap is the number of workout completions rewarded
	// per user per calendar day.
	DailyWorkoutXPCap int
}

func DefaultConfig() Config {
	return Config{
		XPDailyLogin:       10,
		XPWorkoutCompleted: 50,
		XPMeasurement:      5,
		DailyWorkoutXPCap:  2,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.XPDailyLogin <= 0 {
		c.XPDailyLogin = defaults.XPDailyLogin
	}
	if c.XPWorkoutCompleted <= 0 {
		c.XPWorkoutCompleted = defaults.XPWorkoutCompleted
	}
	if c.XPMeasurement <= 0 {
		c.XPMeasurement = defaults.XPMeasurement
	}
	if c.DailyWorkoutXPCap <= 0 {
		c.DailyWorkoutXPCap = defaults.DailyWorkoutXPCap
	}
	return c
}
