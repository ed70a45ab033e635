package models

import (
	"fmt"
	"strings"
	"time"
)

// Gender of the subject, used together with the year stem to pick the Da Yun direction
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// ParseGender accepts English and Chinese spellings
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "男", "乾造":
		return GenderMale, nil
	case "female", "f", "女", "坤造":
		return GenderFemale, nil
	}
	return "", fmt.Errorf("unknown gender %q", s)
}

// Label returns the traditional chart title for the gender
func (g Gender) Label() string {
	if g == GenderFemale {
		return "坤造（女）"
	}
	return "乾造（男）"
}

// Direction of travel through the sexagenary cycle for successive decades
type Direction string

const (
	DirectionForward  Direction = "FORWARD"
	DirectionBackward Direction = "BACKWARD"
)

// Label returns 顺行 / 逆行
func (d Direction) Label() string {
	if d == DirectionBackward {
		return "逆行"
	}
	return "顺行"
}

// ChildhoodLimit labels ages before the first decade pillar starts
const ChildhoodLimit = "童限"

// AgeBand is a contiguous age range governed by one decade pillar (or the pre-cycle band)
type AgeBand struct {
	Lo       int    `json:"lo"`
	Hi       int    `json:"hi"`
	PreCycle bool   `json:"pre_cycle"`
	Decade   int    `json:"decade,omitempty"` // 1-based, zero for the pre-cycle band
	Pillar   string `json:"pillar,omitempty"`
}

// Label returns the pillar text or the childhood limit sentinel
func (b AgeBand) Label() string {
	if b.PreCycle {
		return ChildhoodLimit
	}
	return b.Pillar
}

// Contains reports whether age falls into the band
func (b AgeBand) Contains(age int) bool {
	return age >= b.Lo && age <= b.Hi
}

// YearEntry is the locally computed decade and yearly pillar for one age
type YearEntry struct {
	Age    int    `json:"age"`
	Year   int    `json:"year"`
	DaYun  string `json:"daYun"`
	GanZhi string `json:"ganZhi"`
}

// Pillars holds the four pre-computed chart pillars
type Pillars struct {
	Year  string `json:"yearPillar"`
	Month string `json:"monthPillar"`
	Day   string `json:"dayPillar"`
	Hour  string `json:"hourPillar"`
}

// Slice returns the pillars in year, month, day, hour order
func (p Pillars) Slice() []string {
	return []string{p.Year, p.Month, p.Day, p.Hour}
}

// APISettings are the per-request generator settings; blank values fall back to config
type APISettings struct {
	Model   string `json:"modelName"`
	BaseURL string `json:"apiBaseUrl"`
	APIKey  string `json:"apiKey"`
}

// AnalysisInput is the raw form data received from a presentation layer
type AnalysisInput struct {
	Name       string      `json:"name"`
	Gender     string      `json:"gender"`
	BirthYear  string      `json:"birthYear"`
	Pillars    Pillars     `json:"pillars"`
	StartAge   string      `json:"startAge"`
	FirstDaYun string      `json:"firstDaYun"`
	API        APISettings `json:"api"`
}

// Subject is the parsed, request scoped view of an AnalysisInput
type Subject struct {
	Name       string    `json:"name,omitempty"`
	Gender     Gender    `json:"gender"`
	BirthYear  int       `json:"birthYear"`
	Pillars    Pillars   `json:"pillars"`
	StartAge   int       `json:"startAge"`
	FirstDaYun string    `json:"firstDaYun"`
	Direction  Direction `json:"direction"`
}

// DisplayName returns the name or a neutral placeholder
func (s Subject) DisplayName() string {
	if strings.TrimSpace(s.Name) == "" {
		return "命主"
	}
	return s.Name
}

// GenerationRequest is the prompt payload sent to the text generator
type GenerationRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	User   string `json:"user"`
}

// ChartPoint is one year of the life K-line
type ChartPoint struct {
	Age    int     `json:"age"`
	Year   int     `json:"year"`
	DaYun  string  `json:"daYun"`
	GanZhi string  `json:"ganZhi"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// AnalysisResult is the fixed shape narrative part of the report
type AnalysisResult struct {
	Bazi             []string `json:"bazi"`
	Summary          string   `json:"summary"`
	SummaryScore     int      `json:"summaryScore"`
	Personality      string   `json:"personality"`
	PersonalityScore int      `json:"personalityScore"`
	Industry         string   `json:"industry"`
	IndustryScore    int      `json:"industryScore"`
	FengShui         string   `json:"fengShui"`
	FengShuiScore    int      `json:"fengShuiScore"`
	Wealth           string   `json:"wealth"`
	WealthScore      int      `json:"wealthScore"`
	Marriage         string   `json:"marriage"`
	MarriageScore    int      `json:"marriageScore"`
	Health           string   `json:"health"`
	HealthScore      int      `json:"healthScore"`
	Family           string   `json:"family"`
	FamilyScore      int      `json:"familyScore"`
	Crypto           string   `json:"crypto"`
	CryptoScore      int      `json:"cryptoScore"`
	CryptoYear       string   `json:"cryptoYear"`
	CryptoStyle      string   `json:"cryptoStyle"`
}

// LifeTrajectoryResult is the validated generator response
type LifeTrajectoryResult struct {
	ChartData []ChartPoint   `json:"chartData"`
	Analysis  AnalysisResult `json:"analysis"`
}

// LifeReport is what presentation layers render and what the archive stores
type LifeReport struct {
	ID        string               `json:"id"`
	UserID    int64                `json:"user_id,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	Subject   Subject              `json:"subject"`
	Bands     []AgeBand            `json:"bands"`
	Result    LifeTrajectoryResult `json:"result"`
	Corrected int                  `json:"corrected_points,omitempty"`
}
