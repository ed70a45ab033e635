// Package render formats reports and previews as plain text for the CLI and
// chat front ends.
package render

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zorojean/lifekline/internal/report"
	"github.com/zorojean/lifekline/models"
)

// TelegramLimit is the maximum message length accepted by the Bot API, in runes
const TelegramLimit = 4096

// Header describes the subject and the direction of the decade cycle
func Header(s models.Subject) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("【%s】%s，%d年生\n", s.DisplayName(), s.Gender.Label(), s.BirthYear))
	sb.WriteString(fmt.Sprintf("四柱：%s\n", strings.Join(nonEmpty(s.Pillars.Slice()), " ")))
	sb.WriteString(fmt.Sprintf("大运：%s起，%d岁起运，%s\n", s.FirstDaYun, s.StartAge, s.Direction.Label()))
	return sb.String()
}

// BandTable lists every age band with its decade pillar
func BandTable(bands []models.AgeBand) string {
	var sb strings.Builder
	sb.WriteString("大运排布：\n")
	for _, b := range bands {
		if b.PreCycle {
			sb.WriteString(fmt.Sprintf("  %3d-%-3d岁  %s\n", b.Lo, b.Hi, b.Label()))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %3d-%-3d岁  第%d步 %s\n", b.Lo, b.Hi, b.Decade, b.Label()))
	}
	return sb.String()
}

// Timeline lists age, calendar year, yearly pillar and decade pillar, one line per age
func Timeline(entries []models.YearEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%3d岁 %d %s 大运%s\n", e.Age, e.Year, e.GanZhi, e.DaYun))
	}
	return sb.String()
}

// Analysis renders the scored categories followed by the crypto hints
func Analysis(a models.AnalysisResult) string {
	var sb strings.Builder
	for _, c := range report.Categories {
		sb.WriteString(fmt.Sprintf("■ %s（%d/10）\n%s\n\n", c.Title, c.Score(a), strings.TrimSpace(c.Text(a))))
	}
	sb.WriteString(fmt.Sprintf("暴富流年：%s\n", a.CryptoYear))
	sb.WriteString(fmt.Sprintf("适合风格：%s\n", a.CryptoStyle))
	return sb.String()
}

// Extremes returns up to n highest and n lowest scoring points, each ordered by age
func Extremes(points []models.ChartPoint, n int) (high, low []models.ChartPoint) {
	if n <= 0 || len(points) == 0 {
		return nil, nil
	}
	sorted := append([]models.ChartPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if n > len(sorted) {
		n = len(sorted)
	}
	high = append(high, sorted[:n]...)
	low = append(low, sorted[len(sorted)-n:]...)

	byAge := func(s []models.ChartPoint) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Age < s[j].Age })
	}
	byAge(high)
	byAge(low)
	return high, low
}

// Report renders a full report
func Report(rep *models.LifeReport) string {
	var sb strings.Builder
	sb.WriteString(Header(rep.Subject))
	sb.WriteString("\n")
	sb.WriteString(BandTable(rep.Bands))
	sb.WriteString("\n")
	sb.WriteString(Analysis(rep.Result.Analysis))

	high, low := Extremes(rep.Result.ChartData, 3)
	if len(high) > 0 {
		sb.WriteString("\n高峰流年：\n")
		writePoints(&sb, high)
		sb.WriteString("低谷流年：\n")
		writePoints(&sb, low)
	}
	if rep.Corrected > 0 {
		sb.WriteString(fmt.Sprintf("\n已按本地排盘校正 %d 个流年数据点\n", rep.Corrected))
	}
	if rep.ID != "" {
		sb.WriteString(fmt.Sprintf("\n报告编号：%s\n", rep.ID))
	}
	return sb.String()
}

func writePoints(sb *strings.Builder, points []models.ChartPoint) {
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("  %d岁（%d %s）%.0f分 %s\n", p.Age, p.Year, p.GanZhi, p.Score, strings.TrimSpace(p.Reason)))
	}
}

// Chunk splits text into pieces of at most limit runes, breaking on line
// boundaries where possible
func Chunk(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n <= limit {
			cur.WriteString(line)
			curLen += n
			continue
		}
		flush()
		// a single line longer than limit is cut by runes
		for n > limit {
			r := []rune(line)
			chunks = append(chunks, string(r[:limit]))
			line = string(r[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen = n
	}
	flush()
	return chunks
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
