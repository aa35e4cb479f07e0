package records

import (
	"errors"
	"time"
)

var ErrRecordNotFound = errors.New("personal record not found")

// PersonalRecord is the single best historical set for one
// (user, exercise name) pair. At most one row exists per pair; when no
// qualifying entry survives, the row is absent rather than zeroed.
type PersonalRecord struct {
	UserID       string    `json:"userId"`
	ExerciseName string    `json:"exerciseName"`
	Weight       float64   `json:"weight"`
	AchievedAt   time.Time `json:"achievedAt"`
}

// EntryBest is the slice of a ledger entry the maintainer cares about.
type EntryBest struct {
	ExerciseName  string
	BestSetWeight float64
}

type Rename struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}
