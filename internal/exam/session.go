// Package exam owns the timed multi-question attempt lifecycle: answer
// collection, the countdown, forced submission, batch grading, and the final
// report.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Quarong/Huiti-AI-Plus/internal/grading"
	"github.com/Quarong/Huiti-AI-Plus/internal/model"
)

// State is the session lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateGrading    State = "grading"
	StateReviewed   State = "reviewed"
)

var (
	// ErrAlreadyStarted is returned by Start on anything but a fresh session.
	ErrAlreadyStarted = errors.New("exam session already started")
	// ErrNotInProgress rejects answer updates and submissions outside
	// InProgress. A duplicate submit while grading lands here and is a no-op.
	ErrNotInProgress = errors.New("exam session is not in progress")
	// ErrUnknownQuestion rejects answers for questions outside the exam.
	ErrUnknownQuestion = errors.New("question is not part of this exam")
	// ErrNoReport is returned by Report before the session is reviewed.
	ErrNoReport = errors.New("exam session has not been graded yet")
	// ErrAbandoned is returned when a grading run finds its session was
	// reset underneath it; its results are discarded.
	ErrAbandoned = errors.New("exam session was abandoned during grading")
)

// UnansweredError reports how many questions are still blank on a manual
// submit, so the caller can run its confirmation step.
type UnansweredError struct {
	Count int
}

func (e *UnansweredError) Error() string {
	return fmt.Sprintf("%d questions unanswered", e.Count)
}

// Session is one attempt at one exam. All methods are safe for concurrent
// use; the judge call is the only suspend point and runs outside the lock.
type Session struct {
	mu     sync.Mutex
	exam   model.Exam
	grader *grading.Grader
	sink   model.RecordSink
	now    func() time.Time

	state    State
	answers  map[string]string
	timeLeft int
	expired  bool
	// generation guards against a stale grading run mutating a session
	// that was reset while the judge call was in flight.
	generation uint64
	report     *model.ExamReport
}

// NewSession creates a fresh session in NotStarted. Records produced at
// review time are handed to sink, one per question.
func NewSession(exam model.Exam, grader *grading.Grader, sink model.RecordSink) *Session {
	if sink == nil {
		sink = func(model.AnswerRecord) {}
	}
	return &Session{
		exam:    exam,
		grader:  grader,
		sink:    sink,
		now:     time.Now,
		state:   StateNotStarted,
		answers: make(map[string]string),
	}
}

// Exam returns the exam this session is an attempt of.
func (s *Session) Exam() model.Exam { return s.exam }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TimeLeft returns the remaining countdown in seconds.
func (s *Session) TimeLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeLeft
}

// Start launches the attempt and initializes the countdown.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNotStarted {
		return ErrAlreadyStarted
	}
	s.state = StateInProgress
	s.timeLeft = s.exam.Duration * 60
	return nil
}

// SetAnswer stores or overwrites the answer for one question. Allowed only
// while the attempt is in progress.
func (s *Session) SetAnswer(questionID, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	if !s.hasQuestion(questionID) {
		return ErrUnknownQuestion
	}
	s.answers[questionID] = raw
	return nil
}

// Answers returns a copy of the collected answers.
func (s *Session) Answers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// UnansweredCount returns how many questions have no non-blank answer.
func (s *Session) UnansweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unansweredLocked()
}

func (s *Session) unansweredLocked() int {
	n := 0
	for _, q := range s.exam.Questions {
		if strings.TrimSpace(s.answers[q.ID]) == "" {
			n++
		}
	}
	return n
}

// Tick advances the countdown by one second. It never blocks and performs no
// I/O. The return value is true exactly once, when the countdown reaches
// zero while the attempt is in progress; the clock owner must then force a
// submission. Repeated ticks at zero are absorbed.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return false
	}
	if s.timeLeft > 0 {
		s.timeLeft--
	}
	if s.timeLeft == 0 && !s.expired {
		s.expired = true
		return true
	}
	return false
}

// RunClock drives the countdown with a one-second ticker until the attempt
// leaves InProgress or ctx is canceled. When the countdown expires it forces
// submission, bypassing the unanswered confirmation.
func (s *Session) RunClock(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Tick() {
				if _, err := s.Submit(ctx, true); err != nil && !errors.Is(err, ErrNotInProgress) {
					slog.Error("forced submission failed", "exam", s.exam.ID, "error", err)
				}
				return
			}
			if s.State() != StateInProgress {
				return
			}
		}
	}
}

// Submit grades the attempt. Without force, a submission with unanswered
// questions is refused with an UnansweredError so the caller can confirm;
// forced submission (countdown expiry, or a confirmed manual submit) skips
// that check. Only one submission can win: any attempt outside InProgress is
// rejected with ErrNotInProgress, which also makes a resubmission during
// grading a no-op.
func (s *Session) Submit(ctx context.Context, force bool) (*model.ExamReport, error) {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return nil, ErrNotInProgress
	}
	if !force {
		if n := s.unansweredLocked(); n > 0 {
			s.mu.Unlock()
			return nil, &UnansweredError{Count: n}
		}
	}
	s.state = StateGrading
	gen := s.generation
	forced := s.expired
	questions := s.exam.Questions
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	s.mu.Unlock()

	// The only suspend point: one judge round-trip for all deferred answers.
	verdicts := s.grader.GradeBatch(ctx, questions, answers)

	s.mu.Lock()
	if s.generation != gen || s.state != StateGrading {
		// The session was reset while grading was in flight; the results
		// belong to a dead attempt and must not touch the new one.
		s.mu.Unlock()
		return nil, ErrAbandoned
	}
	at := s.now()
	records := make([]model.AnswerRecord, len(questions))
	for i, q := range questions {
		records[i] = grading.NewRecord(q, answers[q.ID], verdicts[i], at)
	}
	report := &model.ExamReport{
		ExamID:               s.exam.ID,
		Title:                s.exam.Title,
		Score:                grading.Score(verdicts),
		Correct:              countCorrect(verdicts),
		Total:                len(questions),
		Verdicts:             verdicts,
		Records:              records,
		TotalDurationMinutes: s.exam.Duration,
		SubmittedAt:          at,
		Forced:               forced,
	}
	s.report = report
	s.state = StateReviewed
	s.mu.Unlock()

	for _, rec := range records {
		s.sink(rec)
	}
	slog.Info("exam graded",
		"exam", s.exam.ID,
		"score", report.Score,
		"correct", report.Correct,
		"total", report.Total,
		"forced", forced,
	)
	return report, nil
}

// Report returns the final report once the session is reviewed.
func (s *Session) Report() (*model.ExamReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewed || s.report == nil {
		return nil, ErrNoReport
	}
	return s.report, nil
}

// Reset discards the attempt and returns the session to NotStarted. Answers
// entered so far are lost; a grading run still in flight will find its
// generation stale and drop its results.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.state = StateNotStarted
	s.answers = make(map[string]string)
	s.timeLeft = 0
	s.expired = false
	s.report = nil
}

func (s *Session) hasQuestion(id string) bool {
	for _, q := range s.exam.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

func countCorrect(verdicts []model.Verdict) int {
	n := 0
	for _, v := range verdicts {
		if v.Correct {
			n++
		}
	}
	return n
}
