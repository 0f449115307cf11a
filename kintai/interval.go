package kintai

import "time"

type PersonID string

type GroupID string

// Category classifies a break. Each category carries its own overtime limit.
type Category string

const (
	CategoryToiletSmall = Category("toilet_small")
	CategoryToiletBig   = Category("toilet_big")
	CategorySmoke       = Category("smoke")
	CategoryMeal        = Category("meal")
)

var Categories = []Category{CategoryToiletSmall, CategoryToiletBig, CategorySmoke, CategoryMeal}

// DefaultLimits are the per-category overtime limits.
var DefaultLimits = map[Category]time.Duration{
	CategoryToiletSmall: 5 * time.Minute,
	CategoryToiletBig:   10 * time.Minute,
	CategorySmoke:       5 * time.Minute,
	CategoryMeal:        30 * time.Minute,
}

func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// WorkInterval is a half-open work span. A nil EndAt means the interval is
// still open and extends to "now" for any duration or overlap computation.
type WorkInterval struct {
	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

func (w WorkInterval) Open() bool {
	return w.EndAt == nil
}

type BreakInterval struct {
	Category Category   `json:"category"`
	StartAt  time.Time  `json:"start_at"`
	EndAt    *time.Time `json:"end_at"`
}

func (b BreakInterval) Open() bool {
	return b.EndAt == nil
}

// MinutesBetween returns whole minutes from a to b, floored, never negative.
func MinutesBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a) / time.Minute)
}
