package report

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zorojean/lifekline/internal/apperr"
	"github.com/zorojean/lifekline/models"
)

// ChartPointsKey is the only field a generator answer cannot do without
const ChartPointsKey = "chartPoints"

// year, month, day and hour pillars
const baziLen = 4

// Validate turns generator message content into a result. Only a missing or
// non-array chartPoints field fails; every other field falls back to its default.
func Validate(raw []byte) (*models.LifeTrajectoryResult, error) {
	content := CleanJSONContent(string(raw))
	if content == "" {
		return nil, &apperr.MalformedResponseError{Reason: "content is empty"}
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, &apperr.MalformedResponseError{Reason: "content is not a JSON object", Err: err}
	}

	rawPoints, ok := doc[ChartPointsKey]
	if !ok {
		return nil, &apperr.MalformedResponseError{Reason: "missing chartPoints"}
	}
	items, ok := rawPoints.([]any)
	if !ok {
		return nil, &apperr.MalformedResponseError{Reason: "chartPoints is not an array"}
	}

	result := &models.LifeTrajectoryResult{
		ChartData: make([]models.ChartPoint, 0, len(items)),
		Analysis:  analysisFrom(doc),
	}

	skipped := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		result.ChartData = append(result.ChartData, chartPointFrom(obj))
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("Ignored chart points that are not objects")
	}

	return result, nil
}

func analysisFrom(doc map[string]any) models.AnalysisResult {
	var a models.AnalysisResult
	for _, f := range textFields {
		f.set(&a, stringValue(doc[f.key], f.def))
	}
	for _, f := range scoreFields {
		f.set(&a, scoreValue(doc[f.key]))
	}
	a.Bazi = baziValue(doc["bazi"])
	return a
}

func chartPointFrom(obj map[string]any) models.ChartPoint {
	age, _ := numberValue(obj["age"])
	year, _ := numberValue(obj["year"])
	p := models.ChartPoint{
		Age:    int(math.Round(age)),
		Year:   int(math.Round(year)),
		DaYun:  stringValue(obj["daYun"], ""),
		GanZhi: stringValue(obj["ganZhi"], ""),
		Reason: stringValue(obj["reason"], ""),
	}
	p.Open, _ = numberValue(obj["open"])
	p.Close, _ = numberValue(obj["close"])
	p.High, _ = numberValue(obj["high"])
	p.Low, _ = numberValue(obj["low"])
	p.Score, _ = numberValue(obj["score"])
	return p
}

// stringValue returns v when it is a non-blank string, def otherwise
func stringValue(v any, def string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

// numberValue accepts JSON numbers and numeric strings
func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func scoreValue(v any) int {
	f, ok := numberValue(v)
	if !ok || math.IsNaN(f) {
		return DefaultScore
	}
	// clamp before converting: int of an out of range float is undefined
	f = math.Max(minScore, math.Min(maxScore, f))
	return int(math.Round(f))
}

// baziValue keeps the four pillars only when all of them are strings, so
// positions never shift; anything else is left empty for the caller to fill.
func baziValue(v any) []string {
	items, ok := v.([]any)
	if !ok || len(items) != baziLen {
		return []string{}
	}
	out := make([]string, 0, baziLen)
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return []string{}
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// CleanJSONContent strips Markdown code fences and any chatter around the outermost JSON object
func CleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
