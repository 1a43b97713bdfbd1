package domain

import "fmt"

// Category classifies a number. Scoring only ever produces the UI subset
// (trusted, safe, neutral, suspicious, dangerous, unknown); spam and scam
// arrive through reports and merges.
type Category string

const (
	CategoryTrusted    Category = "trusted"
	CategorySafe       Category = "safe"
	CategoryUnknown    Category = "unknown"
	CategoryNeutral    Category = "neutral"
	CategorySuspicious Category = "suspicious"
	CategorySpam       Category = "spam"
	CategoryScam       Category = "scam"
	CategoryDangerous  Category = "dangerous"
)

var severityRank = map[Category]int{
	CategoryTrusted:    0,
	CategorySafe:       1,
	CategoryUnknown:    2,
	CategoryNeutral:    3,
	CategorySuspicious: 4,
	CategorySpam:       5,
	CategoryScam:       6,
	CategoryDangerous:  7,
}

// Rank returns the severity of c; higher is more dangerous. Unrecognized
// categories rank below everything else.
func (c Category) Rank() int {
	if r, ok := severityRank[c]; ok {
		return r
	}
	return -1
}

func (c Category) Valid() bool {
	_, ok := severityRank[c]
	return ok
}

// ParseCategory validates s as a known category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// MoreSevere returns whichever of a and b ranks higher, preferring a on ties.
func MoreSevere(a, b Category) Category {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
