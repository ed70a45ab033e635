package dayun

import (
	"fmt"

	"github.com/zorojean/lifekline/internal/ganzhi"
	"github.com/zorojean/lifekline/models"
)

const (
	// MaxAge is the last age covered by a life chart
	MaxAge = 100
	// DecadeLength is the number of years one Da Yun pillar governs
	DecadeLength = 10
)

// Spec describes the decade cycle of one subject: where it starts, at what age
// and in which direction it walks the sexagenary cycle.
type Spec struct {
	First     ganzhi.Pillar
	StartAge  int
	Direction models.Direction
}

// NewSpec validates the start age and direction
func NewSpec(first ganzhi.Pillar, startAge int, direction models.Direction) (Spec, error) {
	if startAge < 1 || startAge > MaxAge {
		return Spec{}, fmt.Errorf("start age %d out of range 1-%d", startAge, MaxAge)
	}
	if direction != models.DirectionForward && direction != models.DirectionBackward {
		return Spec{}, fmt.Errorf("unknown direction %q", direction)
	}
	return Spec{First: first, StartAge: startAge, Direction: direction}, nil
}

// Decades is the number of decade bands needed to reach MaxAge
func (s Spec) Decades() int {
	return (MaxAge-s.StartAge)/DecadeLength + 1
}

// PillarAt returns the pillar of the k-th decade, k starting at 0
func (s Spec) PillarAt(k int) ganzhi.Pillar {
	return s.First.Step(k * ganzhi.StepFor(s.Direction))
}

// Bands partitions ages 1..MaxAge: an optional childhood-limit band followed by
// consecutive decade bands, the last one clipped at MaxAge.
func (s Spec) Bands() []models.AgeBand {
	bands := make([]models.AgeBand, 0, s.Decades()+1)
	if s.StartAge > 1 {
		bands = append(bands, models.AgeBand{Lo: 1, Hi: s.StartAge - 1, PreCycle: true})
	}
	for k := 0; k < s.Decades(); k++ {
		lo := s.StartAge + k*DecadeLength
		bands = append(bands, models.AgeBand{
			Lo:     lo,
			Hi:     min(lo+DecadeLength-1, MaxAge),
			Decade: k + 1,
			Pillar: s.PillarAt(k).String(),
		})
	}
	return bands
}

// BandForAge finds the band governing age; ok is false outside 1..MaxAge
func (s Spec) BandForAge(age int) (models.AgeBand, bool) {
	if age < 1 || age > MaxAge {
		return models.AgeBand{}, false
	}
	if age < s.StartAge {
		return models.AgeBand{Lo: 1, Hi: s.StartAge - 1, PreCycle: true}, true
	}
	k := (age - s.StartAge) / DecadeLength
	lo := s.StartAge + k*DecadeLength
	return models.AgeBand{
		Lo:     lo,
		Hi:     min(lo+DecadeLength-1, MaxAge),
		Decade: k + 1,
		Pillar: s.PillarAt(k).String(),
	}, true
}

// DaYunAt returns the decade label for an age: a pillar or the childhood limit sentinel
func (s Spec) DaYunAt(age int) string {
	b, ok := s.BandForAge(age)
	if !ok {
		return ""
	}
	return b.Label()
}

// YearOf returns the calendar year of an age counted the traditional way:
// age 1 is the birth year.
func YearOf(birthYear, age int) int {
	return birthYear + age - 1
}

// Timeline expands the spec into one entry per age, with the yearly pillar of
// each calendar year.
func (s Spec) Timeline(birthYear int) []models.YearEntry {
	out := make([]models.YearEntry, 0, MaxAge)
	for _, b := range s.Bands() {
		for age := b.Lo; age <= b.Hi; age++ {
			year := YearOf(birthYear, age)
			out = append(out, models.YearEntry{
				Age:    age,
				Year:   year,
				DaYun:  b.Label(),
				GanZhi: ganzhi.YearPillar(year).String(),
			})
		}
	}
	return out
}
