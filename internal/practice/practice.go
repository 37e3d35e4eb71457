// Package practice runs the single-question self-study flow: one subject,
// shuffled questions, one verdict at a time with judge feedback surfaced to
// the learner.
package practice

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Quarong/Huiti-AI-Plus/internal/grading"
	"github.com/Quarong/Huiti-AI-Plus/internal/model"
)

// ErrNoQuestions is returned when the subject has nothing to practice.
var ErrNoQuestions = errors.New("no questions available for practice")

// ErrExhausted is returned by Current after the last question was answered;
// the next Answer or Current call after Reshuffle starts a fresh round.
var ErrExhausted = errors.New("practice round finished")

// Progress is the running tally of one practice round.
type Progress struct {
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
	Total    int `json:"total"`
}

// Runner walks a learner through one subject's questions. The shuffle is
// cosmetic presentation order, seeded for reproducibility, not grading state.
type Runner struct {
	mu        sync.Mutex
	grader    *grading.Grader
	sink      model.RecordSink
	now       func() time.Time
	questions []model.Question
	rng       *rand.Rand
	idx       int
	progress  Progress
}

// NewRunner creates a practice round over the given questions, shuffled with
// the seed. The slice is copied; the caller's order is never mutated.
func NewRunner(questions []model.Question, seed uint64, grader *grading.Grader, sink model.RecordSink) (*Runner, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if sink == nil {
		sink = func(model.AnswerRecord) {}
	}
	r := &Runner{
		grader:    grader,
		sink:      sink,
		now:       time.Now,
		questions: append([]model.Question(nil), questions...),
		rng:       rand.New(rand.NewPCG(seed, seed)),
		progress:  Progress{Total: len(questions)},
	}
	r.shuffleLocked()
	return r, nil
}

// Current returns the question awaiting an answer.
func (r *Runner) Current() (model.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idx >= len(r.questions) {
		return model.Question{}, ErrExhausted
	}
	return r.questions[r.idx], nil
}

// Answer grades the current question, records the result, advances to the
// next question, and returns the verdict with any judge feedback.
func (r *Runner) Answer(ctx context.Context, raw string) (model.Verdict, error) {
	r.mu.Lock()
	if r.idx >= len(r.questions) {
		r.mu.Unlock()
		return model.Verdict{}, ErrExhausted
	}
	q := r.questions[r.idx]
	r.mu.Unlock()

	verdict := r.grader.GradeOne(ctx, q, raw)

	r.mu.Lock()
	r.idx++
	r.progress.Answered++
	if verdict.Correct {
		r.progress.Correct++
	}
	at := r.now()
	r.mu.Unlock()

	r.sink(grading.NewRecord(q, raw, verdict, at))
	return verdict, nil
}

// Progress returns the round's running tally.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Reshuffle starts a fresh round over the same questions with a new
// presentation order drawn from the runner's seeded source.
func (r *Runner) Reshuffle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shuffleLocked()
	r.idx = 0
	r.progress = Progress{Total: len(r.questions)}
}

func (r *Runner) shuffleLocked() {
	r.rng.Shuffle(len(r.questions), func(i, j int) {
		r.questions[i], r.questions[j] = r.questions[j], r.questions[i]
	})
}

// FilterSubject returns the questions belonging to one subject, preserving
// bank order.
func FilterSubject(questions []model.Question, subject string) []model.Question {
	var out []model.Question
	for _, q := range questions {
		if q.Subject == subject {
			out = append(out, q)
		}
	}
	return out
}

// Subjects returns the distinct subjects present in the bank, in first-seen
// order.
func Subjects(questions []model.Question) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range questions {
		if q.Subject == "" || seen[q.Subject] {
			continue
		}
		seen[q.Subject] = true
		out = append(out, q.Subject)
	}
	return out
}
