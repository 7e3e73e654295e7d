package quiz

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service/adaptive"
)

var (
	ErrNoSession     = errors.New("no active session")
	ErrStaleQuestion = errors.New("question already resolved")
	ErrSessionActive = errors.New("another session is already active")
	ErrNoQuestions   = errors.New("no questions available")
	ErrNotMock       = errors.New("only a mock test can be ended early")
)

type StartOptions struct {
	Kind      Kind
	Mode      string
	UserID    int64
	ChatID    int64
	Paper     int
	Questions []models.Question
}

// Prompt is a question waiting for an answer.
type Prompt struct {
	SessionID string
	Kind      Kind
	Index     int
	Total     int
	Question  models.Question
	Deadline  time.Time
}

// Step describes how one question was resolved and what comes next.
// Exactly one of Next and Result is set.
type Step struct {
	SessionID string
	Kind      Kind
	UserID    int64
	ChatID    int64
	Index     int
	Outcome   Outcome
	Question  models.Question
	Choice    int
	Next      *Prompt
	Result    *Result
}

// Abandoned identifies a session dropped by Evict.
type Abandoned struct {
	UserID int64
	ChatID int64
	Kind   Kind
}

type session struct {
	id        string
	kind      Kind
	mode      string
	userID    int64
	chatID    int64
	paper     int
	questions []models.Question

	current       int
	correct       int
	wrong         int
	skipped       int
	sections      map[string]adaptive.SectionScore
	responseTimes []float64

	startedAt  time.Time
	shownAt    time.Time
	lastActive time.Time
	timer      Timer
}

func (s *session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Manager holds at most one running session per user, diagnostic or mock.
// Diagnostic questions expire after the configured timeout and count as skipped.
type Manager struct {
	clock   Clock
	timeout time.Duration

	mu        sync.Mutex
	sessions  map[int64]*session
	onTimeout func(Step)
}

func NewManager(clock Clock, timeout time.Duration) *Manager {
	if clock == nil {
		clock = RealClock()
	}
	return &Manager{
		clock:    clock,
		timeout:  timeout,
		sessions: make(map[int64]*session),
	}
}

// OnTimeout registers the callback for auto-skipped questions. It runs on the
// timer goroutine, outside the manager lock.
func (m *Manager) OnTimeout(fn func(Step)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTimeout = fn
}

func (m *Manager) Start(opts StartOptions) (*Prompt, error) {
	if len(opts.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[opts.UserID]; ok {
		return nil, ErrSessionActive
	}

	now := m.clock.Now()
	s := &session{
		id:        uuid.NewString(),
		kind:      opts.Kind,
		mode:      opts.Mode,
		userID:    opts.UserID,
		chatID:    opts.ChatID,
		paper:     opts.Paper,
		questions: opts.Questions,
		sections:  make(map[string]adaptive.SectionScore),
		startedAt: now,
	}
	m.sessions[opts.UserID] = s

	return m.prompt(s), nil
}

func (m *Manager) Answer(userID int64, sessionID string, index, choice int) (*Step, error) {
	if choice < 0 || choice > 3 {
		return nil, fmt.Errorf("invalid choice (index: %d, choice: %d)", index, choice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(userID, sessionID, index)
	if err != nil {
		return nil, err
	}

	s.responseTimes = append(s.responseTimes, m.clock.Now().Sub(s.shownAt).Seconds())

	outcome := OutcomeWrong
	if choice == s.questions[index].AnswerIdx {
		outcome = OutcomeCorrect
	}
	return m.resolve(s, outcome, choice), nil
}

func (m *Manager) Skip(userID int64, sessionID string, index int) (*Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(userID, sessionID, index)
	if err != nil {
		return nil, err
	}
	return m.resolve(s, OutcomeSkipped, -1), nil
}

// End finishes a mock with whatever was answered so far.
func (m *Manager) End(userID int64, sessionID string) (*Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	if sessionID != "" && s.id != sessionID {
		return nil, ErrStaleQuestion
	}
	if s.kind != KindMock {
		return nil, ErrNotMock
	}

	s.stopTimer()
	step := &Step{
		SessionID: s.id,
		Kind:      s.kind,
		UserID:    s.userID,
		ChatID:    s.chatID,
		Index:     s.current,
		Outcome:   OutcomeEnded,
		Choice:    -1,
	}
	s.current = len(s.questions)
	step.Result = m.finish(s)
	return step, nil
}

func (m *Manager) Active(userID int64) (Kind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return 0, false
	}
	return s.kind, true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict drops sessions with no activity for longer than idle.
func (m *Manager) Evict(idle time.Duration) []Abandoned {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-idle)

	var dropped []Abandoned
	for userID, s := range m.sessions {
		if s.lastActive.After(cutoff) {
			continue
		}
		s.stopTimer()
		delete(m.sessions, userID)
		dropped = append(dropped, Abandoned{UserID: userID, ChatID: s.chatID, Kind: s.kind})
	}
	return dropped
}

// Stop cancels every pending deadline and forgets all sessions.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, s := range m.sessions {
		s.stopTimer()
		delete(m.sessions, userID)
	}
}

func (m *Manager) lookup(userID int64, sessionID string, index int) (*session, error) {
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	if sessionID != "" && s.id != sessionID {
		return nil, ErrStaleQuestion
	}
	if s.current != index {
		return nil, ErrStaleQuestion
	}
	return s, nil
}

// prompt shows the current question and arms its deadline. Caller holds m.mu.
func (m *Manager) prompt(s *session) *Prompt {
	now := m.clock.Now()
	s.shownAt = now
	s.lastActive = now

	p := &Prompt{
		SessionID: s.id,
		Kind:      s.kind,
		Index:     s.current,
		Total:     len(s.questions),
		Question:  s.questions[s.current],
	}

	if s.kind == KindDiagnostic && m.timeout > 0 {
		id, index := s.id, s.current
		p.Deadline = now.Add(m.timeout)
		s.timer = m.clock.AfterFunc(m.timeout, func() {
			m.expire(s.userID, id, index)
		})
	}

	return p
}

// resolve records the outcome of the current question and advances. Caller holds m.mu.
func (m *Manager) resolve(s *session, outcome Outcome, choice int) *Step {
	s.stopTimer()

	q := s.questions[s.current]
	score := s.sections[q.Section]
	score.Total++

	switch outcome {
	case OutcomeCorrect:
		s.correct++
		score.Correct++
	case OutcomeWrong:
		s.wrong++
	default:
		s.skipped++
	}
	s.sections[q.Section] = score

	step := &Step{
		SessionID: s.id,
		Kind:      s.kind,
		UserID:    s.userID,
		ChatID:    s.chatID,
		Index:     s.current,
		Outcome:   outcome,
		Question:  q,
		Choice:    choice,
	}

	s.current++
	if s.current >= len(s.questions) {
		step.Result = m.finish(s)
	} else {
		step.Next = m.prompt(s)
	}
	return step
}

// finish aggregates the session and removes it. Caller holds m.mu.
func (m *Manager) finish(s *session) *Result {
	delete(m.sessions, s.userID)

	return &Result{
		SessionID:     s.id,
		Kind:          s.kind,
		Mode:          s.mode,
		Paper:         s.paper,
		Total:         len(s.questions),
		Correct:       s.correct,
		Wrong:         s.wrong,
		Skipped:       s.skipped,
		Sections:      s.sections,
		ResponseTimes: s.responseTimes,
		Elapsed:       m.clock.Now().Sub(s.startedAt),
	}
}

func (m *Manager) expire(userID int64, sessionID string, index int) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok || s.id != sessionID || s.current != index {
		m.mu.Unlock()
		return
	}
	step := m.resolve(s, OutcomeTimedOut, -1)
	fn := m.onTimeout
	m.mu.Unlock()

	if fn != nil {
		fn(*step)
	}
}
