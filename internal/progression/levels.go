package progression

import "math"

// LevelForXP derives the level from cumulative XP:
//
//	level = floor((-350 + sqrt(202500 + 200*xp)) / 100)
//
// floored to a minimum of 1. The first level-ups happen at 500, 1100
// and 1800 XP. Level is a pure function of XP and is evaluated fresh
// on every award, never stored.
func LevelForXP(xp int64) int {
	if xp <= 0 {
		return 1
	}
	level := int(math.Floor((-350 + math.Sqrt(202500+200*float64(xp))) / 100))
	if level < 1 {
		return 1
	}
	return level
}
