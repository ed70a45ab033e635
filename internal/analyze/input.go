package analyze

import (
	"strconv"
	"strings"

	"github.com/zorojean/lifekline/internal/apperr"
	"github.com/zorojean/lifekline/internal/dayun"
	"github.com/zorojean/lifekline/internal/ganzhi"
	"github.com/zorojean/lifekline/models"
)

const (
	minBirthYear = 1
	maxBirthYear = 3000
)

// ParseInput turns raw form data into a subject and its decade cycle. The four
// pillars are only trimmed; the year pillar feeds the direction resolver, which
// treats anything unrecognised as Yang.
func ParseInput(in models.AnalysisInput) (models.Subject, dayun.Spec, error) {
	gender, err := models.ParseGender(in.Gender)
	if err != nil {
		return models.Subject{}, dayun.Spec{}, &apperr.InputError{Field: "gender", Message: "请选择性别", Err: err}
	}

	birthYear, err := strconv.Atoi(strings.TrimSpace(in.BirthYear))
	if err != nil || birthYear < minBirthYear || birthYear > maxBirthYear {
		return models.Subject{}, dayun.Spec{}, &apperr.InputError{Field: "birthYear", Message: "请输入正确的出生年份"}
	}

	startAge, err := strconv.Atoi(strings.TrimSpace(in.StartAge))
	if err != nil || startAge < 1 || startAge > dayun.MaxAge {
		return models.Subject{}, dayun.Spec{}, &apperr.InputError{Field: "startAge", Message: "起运年龄必须是 1-100 之间的整数"}
	}

	first, err := ganzhi.ParsePillar(in.FirstDaYun)
	if err != nil {
		return models.Subject{}, dayun.Spec{}, &apperr.InputError{Field: "firstDaYun", Message: "第一步大运必须是有效的干支，例如 丁卯", Err: err}
	}

	pillars := models.Pillars{
		Year:  strings.TrimSpace(in.Pillars.Year),
		Month: strings.TrimSpace(in.Pillars.Month),
		Day:   strings.TrimSpace(in.Pillars.Day),
		Hour:  strings.TrimSpace(in.Pillars.Hour),
	}
	direction := ganzhi.ResolveDirection(pillars.Year, gender)

	spec, err := dayun.NewSpec(first, startAge, direction)
	if err != nil {
		return models.Subject{}, dayun.Spec{}, &apperr.InputError{Field: "startAge", Message: "大运参数无效", Err: err}
	}

	subject := models.Subject{
		Name:       strings.TrimSpace(in.Name),
		Gender:     gender,
		BirthYear:  birthYear,
		Pillars:    pillars,
		StartAge:   startAge,
		FirstDaYun: first.String(),
		Direction:  direction,
	}
	return subject, spec, nil
}

// Preview is the locally computable part of a report
type Preview struct {
	Subject  models.Subject     `json:"subject"`
	Bands    []models.AgeBand   `json:"bands"`
	Timeline []models.YearEntry `json:"timeline"`
}

// BuildPreview computes direction, bands and the per-age pillars without calling the generator
func BuildPreview(in models.AnalysisInput) (*Preview, error) {
	subject, spec, err := ParseInput(in)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Subject:  subject,
		Bands:    spec.Bands(),
		Timeline: spec.Timeline(subject.BirthYear),
	}, nil
}
