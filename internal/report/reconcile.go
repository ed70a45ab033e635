package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zorojean/lifekline/internal/apperr"
	"github.com/zorojean/lifekline/internal/dayun"
	"github.com/zorojean/lifekline/models"
)

// CheckMode controls what happens when generated chart points disagree with the
// locally computed decade and yearly pillars.
type CheckMode string

const (
	CheckCorrect CheckMode = "correct"
	CheckReject  CheckMode = "reject"
	CheckOff     CheckMode = "off"
)

// ParseCheckMode falls back to CheckCorrect for unknown values
func ParseCheckMode(s string) CheckMode {
	switch CheckMode(strings.ToLower(strings.TrimSpace(s))) {
	case CheckReject:
		return CheckReject
	case CheckOff:
		return CheckOff
	}
	return CheckCorrect
}

// Reconcile checks every chart point against spec's timeline. In correct mode
// mismatching pillars and years are overwritten, points outside 1..100 and
// repeated ages are dropped and the rest sorted by age; the number of changed
// points is returned. In reject mode the first disagreement is a
// MalformedResponseError.
func Reconcile(result *models.LifeTrajectoryResult, spec dayun.Spec, birthYear int, mode CheckMode) (int, error) {
	if mode == CheckOff || result == nil {
		return 0, nil
	}
	logger := log.With().Str("component", "reconcile").Logger()
	timeline := spec.Timeline(birthYear)

	corrected := 0
	seen := make(map[int]bool, len(result.ChartData))
	kept := make([]models.ChartPoint, 0, len(result.ChartData))

	for i, p := range result.ChartData {
		if p.Age == 0 {
			p.Age = i + 1
		}
		if p.Age < 1 || p.Age > dayun.MaxAge || seen[p.Age] {
			if mode == CheckReject {
				return 0, &apperr.MalformedResponseError{Reason: fmt.Sprintf("chart point %d has invalid or repeated age %d", i, p.Age)}
			}
			corrected++
			continue
		}
		seen[p.Age] = true

		want := timeline[p.Age-1]
		mismatch := diff(p, want)
		if mismatch != "" {
			if mode == CheckReject {
				return 0, &apperr.MalformedResponseError{Reason: fmt.Sprintf("age %d: %s", p.Age, mismatch)}
			}
			logger.Debug().Int("age", p.Age).Str("mismatch", mismatch).Msg("Correcting chart point")
			p.Year, p.DaYun, p.GanZhi = want.Year, want.DaYun, want.GanZhi
			corrected++
		}
		kept = append(kept, p)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Age < kept[j].Age })
	result.ChartData = kept

	if corrected > 0 {
		logger.Info().Int("corrected", corrected).Int("points", len(kept)).Msg("Chart points reconciled with local Da Yun timeline")
	}
	return corrected, nil
}

func diff(p models.ChartPoint, want models.YearEntry) string {
	var parts []string
	if p.Year != want.Year {
		parts = append(parts, fmt.Sprintf("year %d want %d", p.Year, want.Year))
	}
	if strings.TrimSpace(p.DaYun) != want.DaYun {
		parts = append(parts, fmt.Sprintf("daYun %q want %q", p.DaYun, want.DaYun))
	}
	if strings.TrimSpace(p.GanZhi) != want.GanZhi {
		parts = append(parts, fmt.Sprintf("ganZhi %q want %q", p.GanZhi, want.GanZhi))
	}
	return strings.Join(parts, ", ")
}
