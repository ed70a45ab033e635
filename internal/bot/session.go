// Package bot holds the chat side conversation state: a staged collection of
// the subject data, one field per message.
package bot

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/zorojean/lifekline/internal/analyze"
	"github.com/zorojean/lifekline/internal/ganzhi"
	"github.com/zorojean/lifekline/internal/render"
	"github.com/zorojean/lifekline/models"
)

// Stage of the input collection
type Stage int

const (
	StageIdle Stage = iota
	StageName
	StageGender
	StageBirthYear
	StagePillars
	StageStartAge
	StageFirstDaYun
	StageReady
)

// SkipName is the reply that leaves the name empty
const SkipName = "跳过"

// Session is the state of one user's conversation
type Session struct {
	Stage        Stage
	Input        models.AnalysisInput
	LastActivity time.Time
}

// Begin resets the session and returns the first question
func (s *Session) Begin() string {
	s.Stage = StageName
	s.Input = models.AnalysisInput{}
	return fmt.Sprintf("请输入命主姓名（可回复“%s”）", SkipName)
}

// Handle consumes one answer. The reply is either the next question or, on a
// rejected answer, the reason together with the same question again.
func (s *Session) Handle(text string) string {
	text = strings.TrimSpace(text)

	switch s.Stage {
	case StageName:
		if text != SkipName {
			s.Input.Name = text
		}
		s.Stage = StageGender
		return "请选择性别：男 / 女"

	case StageGender:
		g, err := models.ParseGender(text)
		if err != nil {
			return "无法识别性别，请回复 男 或 女"
		}
		s.Input.Gender = string(g)
		s.Stage = StageBirthYear
		return "请输入出生年份（阳历，例如 1990）"

	case StageBirthYear:
		year, err := strconv.Atoi(text)
		if err != nil || year < 1 || year > 3000 {
			return "出生年份无效，请输入四位数字年份，例如 1990"
		}
		s.Input.BirthYear = text
		s.Stage = StagePillars
		return "请输入四柱（年 月 日 时），以空格分隔，例如：庚午 丁亥 甲子 丙寅"

	case StagePillars:
		pillars, err := parsePillars(text)
		if err != nil {
			return err.Error() + "\n请重新输入四柱，例如：庚午 丁亥 甲子 丙寅"
		}
		s.Input.Pillars = pillars
		s.Stage = StageStartAge
		return "请输入起运年龄（虚岁，1-100）"

	case StageStartAge:
		age, err := strconv.Atoi(text)
		if err != nil || age < 1 || age > 100 {
			return "起运年龄必须是 1-100 之间的整数"
		}
		s.Input.StartAge = text
		s.Stage = StageFirstDaYun
		return "请输入第一步大运干支，例如 戊子"

	case StageFirstDaYun:
		if _, err := ganzhi.ParsePillar(text); err != nil {
			return "第一步大运必须是有效的干支，例如 戊子"
		}
		s.Input.FirstDaYun = text
		preview, err := analyze.BuildPreview(s.Input)
		if err != nil {
			s.Stage = StageIdle
			return err.Error()
		}
		s.Stage = StageReady
		return render.Header(preview.Subject) + "\n" + render.BandTable(preview.Bands) + "\n确认无误后点击“生成报告”"
	}

	return "发送 /new 开始新的排盘"
}

// Ready reports whether every field has been collected
func (s *Session) Ready() bool {
	return s.Stage == StageReady
}

func parsePillars(text string) (models.Pillars, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '，' || r == '、'
	})
	if len(fields) == 1 && len([]rune(fields[0])) == 8 {
		r := []rune(fields[0])
		fields = []string{string(r[0:2]), string(r[2:4]), string(r[4:6]), string(r[6:8])}
	}
	if len(fields) != 4 {
		return models.Pillars{}, fmt.Errorf("需要四个干支，收到 %d 个", len(fields))
	}
	for _, f := range fields {
		if _, err := ganzhi.ParsePillar(f); err != nil {
			return models.Pillars{}, fmt.Errorf("“%s”不是有效的干支", f)
		}
	}
	return models.Pillars{Year: fields[0], Month: fields[1], Day: fields[2], Hour: fields[3]}, nil
}

// Sessions is a concurrency safe map of user sessions
type Sessions struct {
	mu         sync.Mutex
	sessions   map[int64]*Session
	generating map[int64]bool
	now        func() time.Time
}

// NewSessions creates an empty session map
func NewSessions() *Sessions {
	return &Sessions{
		sessions:   make(map[int64]*Session),
		generating: make(map[int64]bool),
		now:        time.Now,
	}
}

// StartGenerating marks a report as in flight for the user. It returns false
// when one is already running.
func (s *Sessions) StartGenerating(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating[userID] {
		return false
	}
	s.generating[userID] = true
	return true
}

// FinishGenerating clears the in-flight mark set by StartGenerating
func (s *Sessions) FinishGenerating(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generating, userID)
}

// Get returns the user's session, creating an idle one, and marks it active
func (s *Sessions) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{Stage: StageIdle}
		s.sessions[userID] = sess
	}
	sess.LastActivity = s.now()
	return sess
}

// Delete forgets a user's session
func (s *Sessions) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Sweep drops sessions idle for longer than ttl and returns how many were removed
func (s *Sessions) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
