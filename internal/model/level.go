package model

// XPPerLevel is the experience needed to climb one level.
const XPPerLevel = 100

// LevelForXP returns floor(xp / XPPerLevel) + 1.
// Integer division truncates toward zero, so negative totals are floored explicitly.
func LevelForXP(xp int) int {
	q := xp / XPPerLevel
	if xp%XPPerLevel != 0 && xp < 0 {
		q--
	}
	return q + 1
}

// WithXP returns a copy of s with delta added to its experience and the level recomputed.
func (s Student) WithXP(delta int) Student {
	s.XP += delta
	s.Level = LevelForXP(s.XP)
	return s
}
