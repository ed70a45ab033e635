// Package ganzhi models the heavenly stems, earthly branches and the
// sexagenary cycle they form.
package ganzhi

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zorojean/lifekline/models"
)

// CycleLength is the number of valid stem-branch combinations
const CycleLength = 60

var (
	stems    = []rune("甲乙丙丁戊己庚辛壬癸")
	branches = []rune("子丑寅卯辰巳午未申酉戌亥")

	yangStems = []rune("甲丙戊庚壬")
	yinStems  = []rune("乙丁己辛癸")
)

// Polarity of a stem
type Polarity int

const (
	Yang Polarity = iota
	Yin
)

func (p Polarity) String() string {
	if p == Yin {
		return "阴"
	}
	return "阳"
}

// Pillar is one position of the sexagenary cycle, 0 (甲子) through 59 (癸亥)
type Pillar int

// FromParts combines a stem index (mod 10) and branch index (mod 12).
// Only pairs with equal parity exist in the cycle.
func FromParts(stem, branch int) (Pillar, error) {
	s, b := mod(stem, len(stems)), mod(branch, len(branches))
	if s%2 != b%2 {
		return 0, fmt.Errorf("%c%c is not a sexagenary pillar", stems[s], branches[b])
	}
	return Pillar(mod(6*s-5*b, CycleLength)), nil
}

// ParsePillar reads a two-rune stem+branch token, ignoring surrounding whitespace
func ParsePillar(s string) (Pillar, error) {
	r := []rune(strings.TrimSpace(s))
	if len(r) != 2 {
		return 0, fmt.Errorf("pillar %q must be one stem followed by one branch", s)
	}
	si := indexOf(stems, r[0])
	if si < 0 {
		return 0, fmt.Errorf("pillar %q: unknown stem %q", s, r[0])
	}
	bi := indexOf(branches, r[1])
	if bi < 0 {
		return 0, fmt.Errorf("pillar %q: unknown branch %q", s, r[1])
	}
	return FromParts(si, bi)
}

// MustPillar is ParsePillar for literals known to be valid
func MustPillar(s string) Pillar {
	p, err := ParsePillar(s)
	if err != nil {
		panic(err)
	}
	return p
}

// YearPillar returns the pillar labelling a calendar year; 1984 is 甲子
func YearPillar(year int) Pillar {
	return Pillar(mod(year-4, CycleLength))
}

// Stem index 0-9
func (p Pillar) Stem() int { return int(p) % len(stems) }

// Branch index 0-11
func (p Pillar) Branch() int { return int(p) % len(branches) }

// Polarity of the pillar's stem
func (p Pillar) Polarity() Polarity {
	return Polarity(p.Stem() % 2)
}

// Step moves n positions through the cycle; negative n moves backwards
func (p Pillar) Step(n int) Pillar {
	return Pillar(mod(int(p)+n, CycleLength))
}

// Next is the cycle successor
func (p Pillar) Next() Pillar { return p.Step(1) }

// Prev is the cycle predecessor
func (p Pillar) Prev() Pillar { return p.Step(-1) }

func (p Pillar) String() string {
	return string([]rune{stems[p.Stem()], branches[p.Branch()]})
}

// StemPolarity looks a stem up in the polarity tables. ok is false for anything
// that is not one of the ten stems.
func StemPolarity(r rune) (Polarity, bool) {
	if indexOf(yangStems, r) >= 0 {
		return Yang, true
	}
	if indexOf(yinStems, r) >= 0 {
		return Yin, true
	}
	return Yang, false
}

// PillarPolarity returns the polarity of the first rune of a pillar string.
// Empty or unrecognised input counts as Yang.
func PillarPolarity(pillar string) Polarity {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(pillar))
	p, _ := StemPolarity(r)
	return p
}

// ResolveDirection decides whether Da Yun runs forward or backward: male with a
// Yang year stem or female with a Yin year stem runs forward.
func ResolveDirection(yearPillar string, gender models.Gender) models.Direction {
	yang := PillarPolarity(yearPillar) == Yang
	if (gender == models.GenderMale) == yang {
		return models.DirectionForward
	}
	return models.DirectionBackward
}

// StepFor returns +1 or -1 for a direction
func StepFor(d models.Direction) int {
	if d == models.DirectionBackward {
		return -1
	}
	return 1
}

// All returns the 60 pillars in cycle order
func All() []Pillar {
	out := make([]Pillar, CycleLength)
	for i := range out {
		out[i] = Pillar(i)
	}
	return out
}

func indexOf(table []rune, r rune) int {
	for i, v := range table {
		if v == r {
			return i
		}
	}
	return -1
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
