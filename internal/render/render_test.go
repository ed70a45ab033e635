package render

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zorojean/lifekline/internal/dayun"
	"github.com/zorojean/lifekline/internal/ganzhi"
	"github.com/zorojean/lifekline/models"
)

func testSpec(t *testing.T) dayun.Spec {
	t.Helper()
	spec, err := dayun.NewSpec(ganzhi.MustPillar("丁卯"), 3, models.DirectionForward)
	require.NoError(t, err)
	return spec
}

func TestBandTable(t *testing.T) {
	out := BandTable(testSpec(t).Bands())

	assert.Contains(t, out, "童限")
	assert.Contains(t, out, "第1步 丁卯")
	assert.Contains(t, out, "第2步 戊辰")
	assert.Contains(t, out, "第10步 丙子")
}

func TestTimeline(t *testing.T) {
	out := Timeline(testSpec(t).Timeline(1984))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, dayun.MaxAge)
	assert.Equal(t, "  1岁 1984 甲子 大运童限", lines[0])
	assert.Equal(t, " 13岁 1996 丙子 大运戊辰", lines[12])
}

func TestExtremes(t *testing.T) {
	points := []models.ChartPoint{
		{Age: 1, Score: 50}, {Age: 2, Score: 90}, {Age: 3, Score: 10},
		{Age: 4, Score: 80}, {Age: 5, Score: 20},
	}
	high, low := Extremes(points, 2)

	assert.Equal(t, []int{2, 4}, ages(high))
	assert.Equal(t, []int{3, 5}, ages(low))

	high, low = Extremes(nil, 3)
	assert.Empty(t, high)
	assert.Empty(t, low)
}

func TestReport(t *testing.T) {
	spec := testSpec(t)
	rep := &models.LifeReport{
		ID: "r-1",
		Subject: models.Subject{
			Name: "张三", Gender: models.GenderMale, BirthYear: 1984,
			Pillars:  models.Pillars{Year: "甲子", Month: "丙寅"},
			StartAge: 3, FirstDaYun: "丁卯", Direction: models.DirectionForward,
		},
		Bands: spec.Bands(),
		Result: models.LifeTrajectoryResult{
			ChartData: []models.ChartPoint{{Age: 30, Year: 2013, GanZhi: "癸巳", Score: 88, Reason: "财星得位"}},
			Analysis: models.AnalysisResult{
				Summary: "中年发达", SummaryScore: 8, CryptoYear: "2030", CryptoStyle: "现货定投",
			},
		},
		Corrected: 2,
	}

	out := Report(rep)
	assert.Contains(t, out, "【张三】乾造（男），1984年生")
	assert.Contains(t, out, "四柱：甲子 丙寅\n")
	assert.Contains(t, out, "顺行")
	assert.Contains(t, out, "■ 命理总评（8/10）\n中年发达")
	assert.Contains(t, out, "30岁（2013 癸巳）88分 财星得位")
	assert.Contains(t, out, "校正 2 个")
	assert.Contains(t, out, "报告编号：r-1")
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"fits", "甲子\n乙丑\n", 10, []string{"甲子\n乙丑\n"}},
		{"line boundaries", "甲子\n乙丑\n丙寅\n", 6, []string{"甲子\n乙丑\n", "丙寅\n"}},
		{"long line", "甲乙丙丁戊己庚", 3, []string{"甲乙丙", "丁戊己", "庚"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, strings.Join(got, ""))
		})
	}
}

func TestChunkTelegramLimit(t *testing.T) {
	text := strings.Repeat("流年运势平稳，宜守不宜攻。\n", 800)
	for _, c := range Chunk(text, TelegramLimit) {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), TelegramLimit)
	}
}

func ages(points []models.ChartPoint) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.Age
	}
	return out
}
