package grading

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/Quarong/Huiti-AI-Plus/internal/model"
)

// Learner-facing fallback feedback. The judge speaks Chinese in this domain;
// these match the service's default locale and can be overridden per grader.
const (
	// FeedbackJudgeUnavailable marks a deferred answer graded incorrect
	// because the judging service could not be reached.
	FeedbackJudgeUnavailable = "AI 服务暂时不可用，默认判定为错误"
	// FeedbackResultMissing marks a deferred answer the judge response
	// did not cover.
	FeedbackResultMissing = "阅卷结果缺失"
)

// Grader orchestrates deterministic resolution and remote judging for one or
// more candidate answers. It is safe for concurrent use.
type Grader struct {
	judge          Judge
	mode           Strictness
	unavailableMsg string
	missingMsg     string
}

// NewGrader creates a grader backed by the given judge.
func NewGrader(judge Judge, mode Strictness) *Grader {
	return &Grader{
		judge:          judge,
		mode:           mode,
		unavailableMsg: FeedbackJudgeUnavailable,
		missingMsg:     FeedbackResultMissing,
	}
}

// SetFallbackFeedback overrides the learner-facing fallback strings, e.g.
// with localized variants.
func (g *Grader) SetFallbackFeedback(unavailable, missing string) {
	if unavailable != "" {
		g.unavailableMsg = unavailable
	}
	if missing != "" {
		g.missingMsg = missing
	}
}

// GradeBatch grades every question against the answers map (missing keys mean
// unanswered) and returns one verdict per question, in question order.
//
// All deferred answers go to the judge in a single call. A judge failure
// never escapes: every deferred item is then graded incorrect with an
// explanatory feedback string. Given the same inputs and judge behavior the
// output is identical; the judge call is the only suspend point.
func (g *Grader) GradeBatch(ctx context.Context, questions []model.Question, answers map[string]string) []model.Verdict {
	verdicts := make([]model.Verdict, len(questions))
	var deferred []JudgeRequest
	deferredIdx := make(map[string]int)

	for i, q := range questions {
		raw := answers[q.ID]
		switch Resolve(q, raw, g.mode) {
		case LocalPass:
			verdicts[i] = model.Verdict{QuestionID: q.ID, Correct: true, Provenance: model.ProvenanceLocal}
		case LocalFail:
			verdicts[i] = model.Verdict{QuestionID: q.ID, Correct: false, Provenance: model.ProvenanceLocal}
		case NeedsJudge:
			deferred = append(deferred, JudgeRequest{
				ID:            q.ID,
				Question:      q.Prompt,
				CorrectAnswer: q.Answer,
				UserAnswer:    raw,
			})
			deferredIdx[q.ID] = i
		}
	}

	if len(deferred) == 0 {
		return verdicts
	}

	results, err := g.judge.Judge(ctx, deferred)
	if err != nil {
		slog.Warn("remote judge unavailable, failing deferred answers closed",
			"deferred", len(deferred), "error", err)
		for _, req := range deferred {
			verdicts[deferredIdx[req.ID]] = model.Verdict{
				QuestionID: req.ID,
				Correct:    false,
				Feedback:   g.unavailableMsg,
				Provenance: model.ProvenanceExternal,
			}
		}
		return verdicts
	}

	for _, req := range deferred {
		i := deferredIdx[req.ID]
		res, ok := results[req.ID]
		if !ok {
			verdicts[i] = model.Verdict{
				QuestionID: req.ID,
				Correct:    false,
				Feedback:   g.missingMsg,
				Provenance: model.ProvenanceExternal,
			}
			continue
		}
		verdicts[i] = model.Verdict{
			QuestionID: req.ID,
			Correct:    res.IsCorrect,
			Feedback:   res.Feedback,
			Provenance: model.ProvenanceExternal,
		}
	}
	return verdicts
}

// GradeOne grades a single answer: the practice flow's degenerate batch of
// size one, with judge feedback surfaced to the learner.
func (g *Grader) GradeOne(ctx context.Context, q model.Question, raw string) model.Verdict {
	return g.GradeBatch(ctx, []model.Question{q}, map[string]string{q.ID: raw})[0]
}

// NewRecord pairs a verdict with its question and raw answer into the
// persisted form handed to the history store.
func NewRecord(q model.Question, raw string, v model.Verdict, at time.Time) model.AnswerRecord {
	return model.AnswerRecord{
		QuestionID: q.ID,
		Subject:    q.Subject,
		Correct:    v.Correct,
		UserAnswer: raw,
		Feedback:   v.Feedback,
		Timestamp:  at,
	}
}

// Score computes the aggregate exam score: round(100 * correct / total).
func Score(verdicts []model.Verdict) int {
	if len(verdicts) == 0 {
		return 0
	}
	correct := 0
	for _, v := range verdicts {
		if v.Correct {
			correct++
		}
	}
	return int(math.Round(float64(correct) / float64(len(verdicts)) * 100))
}
