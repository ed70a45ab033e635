package ganzhi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zorojean/lifekline/models"
)

func TestResolveDirection(t *testing.T) {
	tests := []struct {
		name       string
		yearPillar string
		gender     models.Gender
		expected   models.Direction
	}{
		{"甲子 男 顺行", "甲子", models.GenderMale, models.DirectionForward},
		{"乙丑 男 逆行", "乙丑", models.GenderMale, models.DirectionBackward},
		{"甲子 女 逆行", "甲子", models.GenderFemale, models.DirectionBackward},
		{"乙丑 女 顺行", "乙丑", models.GenderFemale, models.DirectionForward},
		{"空输入按阳干", "", models.GenderMale, models.DirectionForward},
		{"空输入按阳干 女", "", models.GenderFemale, models.DirectionBackward},
		{"未知字符按阳干", "X子", models.GenderMale, models.DirectionForward},
		{"前后空白", "  癸亥\n", models.GenderMale, models.DirectionBackward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ResolveDirection(tt.yearPillar, tt.gender)
			if result != tt.expected {
				t.Errorf("ResolveDirection(%q, %s) = %v, want %v", tt.yearPillar, tt.gender, result, tt.expected)
			}
		})
	}
}

func TestResolveDirectionAllStems(t *testing.T) {
	for _, s := range yangStems {
		pillar := string(s) + "子"
		assert.Equal(t, models.DirectionForward, ResolveDirection(pillar, models.GenderMale), pillar)
		assert.Equal(t, models.DirectionBackward, ResolveDirection(pillar, models.GenderFemale), pillar)
	}
	for _, s := range yinStems {
		pillar := string(s) + "丑"
		assert.Equal(t, models.DirectionBackward, ResolveDirection(pillar, models.GenderMale), pillar)
		assert.Equal(t, models.DirectionForward, ResolveDirection(pillar, models.GenderFemale), pillar)
	}
}

func TestResolveDirectionWhitespaceInvariant(t *testing.T) {
	for _, p := range All() {
		for _, g := range []models.Gender{models.GenderMale, models.GenderFemale} {
			plain := ResolveDirection(p.String(), g)
			assert.Equal(t, plain, ResolveDirection(" \t"+p.String()+"  ", g))
		}
	}
}

func TestPolarityTablesAlternate(t *testing.T) {
	for i, s := range stems {
		pol, ok := StemPolarity(s)
		require.True(t, ok)
		if i%2 == 0 {
			assert.Equal(t, Yang, pol, string(s))
		} else {
			assert.Equal(t, Yin, pol, string(s))
		}
	}
	_, ok := StemPolarity('子')
	assert.False(t, ok)
}

func TestParsePillar(t *testing.T) {
	tests := []struct {
		in      string
		want    Pillar
		wantErr bool
	}{
		{"甲子", 0, false},
		{"乙丑", 1, false},
		{"丁卯", 3, false},
		{"甲戌", 10, false},
		{"癸亥", 59, false},
		{" 庚午 ", 6, false},
		{"甲丑", 0, true}, // parity mismatch
		{"甲", 0, true},
		{"", 0, true},
		{"子甲", 0, true},
		{"甲子丑", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePillar(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPillarRoundTrip(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range All() {
		text := p.String()
		assert.False(t, seen[text], "duplicate pillar %s", text)
		seen[text] = true

		parsed, err := ParsePillar(text)
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
		assert.Equal(t, p.Stem()%2, p.Branch()%2)
	}
	assert.Len(t, seen, CycleLength)
}

func TestCyclePeriod(t *testing.T) {
	for _, p := range All() {
		fwd, back := p, p
		for i := 0; i < CycleLength; i++ {
			fwd = fwd.Next()
			back = back.Prev()
		}
		assert.Equal(t, p, fwd)
		assert.Equal(t, p, back)
		assert.Equal(t, p, p.Step(CycleLength*3))
		assert.Equal(t, p, p.Step(-CycleLength*2))
	}
}

func TestNextPrev(t *testing.T) {
	assert.Equal(t, "戊辰", MustPillar("丁卯").Next().String())
	assert.Equal(t, "丙寅", MustPillar("丁卯").Prev().String())
	assert.Equal(t, "甲子", MustPillar("癸亥").Next().String())
	assert.Equal(t, "癸亥", MustPillar("甲子").Prev().String())
}

func TestYearPillar(t *testing.T) {
	tests := map[int]string{
		1984: "甲子",
		1985: "乙丑",
		2000: "庚辰",
		2024: "甲辰",
		1924: "甲子",
		1:    "辛酉",
	}
	for year, want := range tests {
		assert.Equal(t, want, YearPillar(year).String(), "year %d", year)
	}
}
