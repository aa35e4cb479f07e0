package progression

// Badge is a one-time-unlockable achievement with a fixed XP bonus,
// granted through the regular XP path (so an unlock can itself cause a
// level-up).
type Badge struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	XPBonus int    `json:"xpBonus"`
}

const BadgeFirstWorkout = "first_workout"

var badges = map[string]Badge{
	BadgeFirstWorkout: {ID: BadgeFirstWorkout, Name: "First Workout", XPBonus: 25},
	"streak_3":        {ID: "streak_3", Name: "3-Day Streak", XPBonus: 25},
	"streak_7":        {ID: "streak_7", Name: "7-Day Streak", XPBonus: 50},
	"streak_30":       {ID: "streak_30", Name: "30-Day Streak", XPBonus: 200},
	"streak_100":      {ID: "streak_100", Name: "100-Day Streak", XPBonus: 500},
}

var streakBadgeThresholds = map[int]string{
	3:   "streak_3",
	7:   "streak_7",
	30:  "streak_30",
	100: "streak_100",
}

// StreakBadge returns the badge unlocked at exactly this streak
// length, if any.
func StreakBadge(streak int) (Badge, bool) {
	id, ok := streakBadgeThresholds[streak]
	if !ok {
		return Badge{}, false
	}
	return badges[id], true
}

func BadgeByID(id string) (Badge, bool) {
	badge, ok := badges[id]
	return badge, ok
}
