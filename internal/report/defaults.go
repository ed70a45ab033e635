package report

import "github.com/zorojean/lifekline/models"

const (
	// PlaceholderText fills any missing narrative field
	PlaceholderText = "暂无分析"
	// DefaultScore fills any missing category score
	DefaultScore = 5

	minScore = 0
	maxScore = 10
)

type textField struct {
	key string
	def string
	set func(*models.AnalysisResult, string)
}

type scoreField struct {
	key string
	set func(*models.AnalysisResult, int)
}

// Field to default tables applied by Validate. Adding a category means adding a row here.
var textFields = []textField{
	{"summary", PlaceholderText, func(a *models.AnalysisResult, v string) { a.Summary = v }},
	{"personality", PlaceholderText, func(a *models.AnalysisResult, v string) { a.Personality = v }},
	{"industry", PlaceholderText, func(a *models.AnalysisResult, v string) { a.Industry = v }},
	{"fengShui", PlaceholderText, func(a *models.AnalysisResult, v string) { a.FengShui = v }},
	{"wealth", PlaceholderText, func(a *models.AnalysisResult, v string) { a.Wealth = v }},
	{"marriage", PlaceholderText, func(a *models.AnalysisResult, v string) { a.Marriage = v }},
	{"health", PlaceholderText, func(a *models.AnalysisResult, v string) { a.Health = v }},
	{"family", PlaceholderText, func(a *models.AnalysisResult, v string) { a.Family = v }},
	{"crypto", PlaceholderText, func(a *models.AnalysisResult, v string) { a.Crypto = v }},
	{"cryptoYear", "待定", func(a *models.AnalysisResult, v string) { a.CryptoYear = v }},
	{"cryptoStyle", "现货定投", func(a *models.AnalysisResult, v string) { a.CryptoStyle = v }},
}

var scoreFields = []scoreField{
	{"summaryScore", func(a *models.AnalysisResult, v int) { a.SummaryScore = v }},
	{"personalityScore", func(a *models.AnalysisResult, v int) { a.PersonalityScore = v }},
	{"industryScore", func(a *models.AnalysisResult, v int) { a.IndustryScore = v }},
	{"fengShuiScore", func(a *models.AnalysisResult, v int) { a.FengShuiScore = v }},
	{"wealthScore", func(a *models.AnalysisResult, v int) { a.WealthScore = v }},
	{"marriageScore", func(a *models.AnalysisResult, v int) { a.MarriageScore = v }},
	{"healthScore", func(a *models.AnalysisResult, v int) { a.HealthScore = v }},
	{"familyScore", func(a *models.AnalysisResult, v int) { a.FamilyScore = v }},
	{"cryptoScore", func(a *models.AnalysisResult, v int) { a.CryptoScore = v }},
}

// Categories lists the scored categories with their display names, in report order
var Categories = []struct {
	Key   string
	Title string
	Text  func(models.AnalysisResult) string
	Score func(models.AnalysisResult) int
}{
	{"summary", "命理总评", func(a models.AnalysisResult) string { return a.Summary }, func(a models.AnalysisResult) int { return a.SummaryScore }},
	{"personality", "性格分析", func(a models.AnalysisResult) string { return a.Personality }, func(a models.AnalysisResult) int { return a.PersonalityScore }},
	{"industry", "事业行业", func(a models.AnalysisResult) string { return a.Industry }, func(a models.AnalysisResult) int { return a.IndustryScore }},
	{"fengShui", "风水环境", func(a models.AnalysisResult) string { return a.FengShui }, func(a models.AnalysisResult) int { return a.FengShuiScore }},
	{"wealth", "财富", func(a models.AnalysisResult) string { return a.Wealth }, func(a models.AnalysisResult) int { return a.WealthScore }},
	{"marriage", "婚姻感情", func(a models.AnalysisResult) string { return a.Marriage }, func(a models.AnalysisResult) int { return a.MarriageScore }},
	{"health", "健康", func(a models.AnalysisResult) string { return a.Health }, func(a models.AnalysisResult) int { return a.HealthScore }},
	{"family", "六亲家庭", func(a models.AnalysisResult) string { return a.Family }, func(a models.AnalysisResult) int { return a.FamilyScore }},
	{"crypto", "币圈运势", func(a models.AnalysisResult) string { return a.Crypto }, func(a models.AnalysisResult) int { return a.CryptoScore }},
}
