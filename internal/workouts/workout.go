package workouts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SetType is a display-only tag describing how a set was executed.
// It never affects volume or personal record computation.
type SetType string

const (
	SetTypeNormal     SetType = "normal"
	SetTypeDropSet    SetType = "drop_set"
	SetTypeMyoRep     SetType = "myo_rep"
	SetTypeRestPause  SetType = "rest_pause"
	SetTypeDescending SetType = "descending"
)

func (st SetType) IsValid() bool {
	switch st {
	case SetTypeNormal,
		SetTypeDropSet,
		SetTypeMyoRep,
		SetTypeRestPause,
		SetTypeDescending:
		return true
	default:
		return false
	}
}

type Set struct {
	ID       int64   `json:"id"`
	Position int     `json:"position"`
	Reps     int     `json:"reps"`
	Weight   float64 `json:"weight"`
	Type     SetType `json:"type"`
}

type Entry struct {
	ID            int64   `json:"id"`
	SessionID     int64   `json:"sessionId"`
	Position      int     `json:"position"`
	ExerciseName  string  `json:"exerciseName"`
	TotalVolume   float64 `json:"totalVolume"`
	BestSetWeight float64 `json:"bestSetWeight"`
	Sets          []Set   `json:"sets"`
}

type Session struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"userId"`
	RoutineID       string    `json:"routineId,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	DurationSeconds int       `json:"durationSeconds"`
	Notes           string    `json:"notes,omitempty"`
	Calories        int       `json:"calories,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	Entries         []Entry   `json:"entries,omitempty"`
}

// NewSession is the raw logging payload. Derived entry fields
// (total volume, best set weight) are computed here, at write time,
// and never re-derived automatically afterwards.
type NewSession struct {
	UserID          string     `json:"userId"`
	RoutineID       string     `json:"routineId"`
	StartedAt       time.Time  `json:"startedAt"`
	DurationSeconds int        `json:"durationSeconds"`
	Notes           string     `json:"notes"`
	Calories        int        `json:"calories"`
	Entries         []NewEntry `json:"entries"`
}

type NewEntry struct {
	ExerciseName string   `json:"exerciseName"`
	Sets         []NewSet `json:"sets"`
}

type NewSet struct {
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
	Type   SetType `json:"type"`
}

var (
	ErrSessionNotFound = errors.New("workout session not found")
	ErrRoutineNotFound = errors.New("routine has no sessions")
	ErrInvalidSession  = errors.New("invalid workout session")
)

func (ns NewSession) Validate() error {
	if ns.UserID == "" {
		return errors.New("user id empty")
	}
	if ns.DurationSeconds < 0 {
		return errors.New("negative duration")
	}
	for i, entry := range ns.Entries {
		if strings.TrimSpace(entry.ExerciseName) == "" {
			return fmt.Errorf("entry %d: exercise name empty", i)
		}
		for j, set := range entry.Sets {
			if set.Reps < 0 {
				return fmt.Errorf("entry %d set %d: negative reps", i, j)
			}
			if set.Weight < 0 {
				return fmt.Errorf("entry %d set %d: negative weight", i, j)
			}
			if set.Type != "" && !set.Type.IsValid() {
				return fmt.Errorf("entry %d set %d: unknown set type %q", i, j, set.Type)
			}
		}
	}
	return nil
}

// Derived computes the entry's total volume (sum of reps x weight)
// and best set weight (max weight over its sets).
func (ne NewEntry) Derived() (totalVolume, bestSetWeight float64) {
	for _, s := range ne.Sets {
		totalVolume += float64(s.Reps) * s.Weight
		if s.Weight > bestSetWeight {
			bestSetWeight = s.Weight
		}
	}
	return totalVolume, bestSetWeight
}

// Build turns the logging payload into a storable session with all
// derived fields filled in.
func (ns NewSession) Build() Session {
	session := Session{
		UserID:          ns.UserID,
		RoutineID:       ns.RoutineID,
		StartedAt:       ns.StartedAt,
		DurationSeconds: ns.DurationSeconds,
		Notes:           ns.Notes,
		Calories:        ns.Calories,
	}
	for i, ne := range ns.Entries {
		totalVolume, bestSetWeight := ne.Derived()
		entry := Entry{
			Position:      i,
			ExerciseName:  strings.TrimSpace(ne.ExerciseName),
			TotalVolume:   totalVolume,
			BestSetWeight: bestSetWeight,
		}
		for j, s := range ne.Sets {
			setType := s.Type
			if setType == "" {
				setType = SetTypeNormal
			}
			entry.Sets = append(entry.Sets, Set{
				Position: j,
				Reps:     s.Reps,
				Weight:   s.Weight,
				Type:     setType,
			})
		}
		session.Entries = append(session.Entries, entry)
	}
	return session
}
