package grading

import "context"

// JudgeRequest is one deferred answer handed to the remote judge.
type JudgeRequest struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	CorrectAnswer string `json:"correctAnswer"`
	UserAnswer    string `json:"userAnswer"`
}

// JudgeResult is the judge's decision for one request.
type JudgeResult struct {
	IsCorrect bool   `json:"isCorrect"`
	Feedback  string `json:"feedback"`
}

// Judge grades a batch of subjective answers in a single round-trip.
// Implementations must return one entry per input id and must report
// transport, auth, and quota failures as a non-nil error rather than a
// fabricated result map; the fail-closed fallback is applied by the Grader.
// Timeout and retry policy belong to the caller's context and the
// implementation's transport, not to the grading engine.
type Judge interface {
	Judge(ctx context.Context, batch []JudgeRequest) (map[string]JudgeResult, error)
}

// JudgeFunc adapts a function to the Judge interface.
type JudgeFunc func(ctx context.Context, batch []JudgeRequest) (map[string]JudgeResult, error)

func (f JudgeFunc) Judge(ctx context.Context, batch []JudgeRequest) (map[string]JudgeResult, error) {
	return f(ctx, batch)
}
