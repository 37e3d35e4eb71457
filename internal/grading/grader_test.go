package grading

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Quarong/Huiti-AI-Plus/internal/model"
)

// fakeJudge records calls and replies from a canned result map.
type fakeJudge struct {
	calls   int
	batches [][]JudgeRequest
	results map[string]JudgeResult
	err     error
}

func (f *fakeJudge) Judge(_ context.Context, batch []JudgeRequest) (map[string]JudgeResult, error) {
	f.calls++
	f.batches = append(f.batches, batch)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func examQuestions() []model.Question {
	return []model.Question{
		{ID: "q1", Subject: "生物", Type: model.TypeMultipleChoice, Options: []string{"猫", "狗", "鸟"}, Answer: "B"},
		{ID: "q2", Subject: "生物", Type: model.TypeTrueFalse, Answer: "正确"},
		{ID: "q3", Subject: "生物", Type: model.TypeShortAnswer, Answer: "光合作用"},
		{ID: "q4", Subject: "生物", Type: model.TypeFillBlank, Answer: "北京 / 上海"},
	}
}

func TestGradeBatchAllLocal(t *testing.T) {
	judge := &fakeJudge{}
	g := NewGrader(judge, Strict)

	questions := examQuestions()[:2]
	answers := map[string]string{"q1": "B", "q2": "错"}

	verdicts := g.GradeBatch(context.Background(), questions, answers)

	if judge.calls != 0 {
		t.Fatalf("judge called %d times for objective-only batch, want 0", judge.calls)
	}
	if len(verdicts) != 2 {
		t.Fatalf("got %d verdicts, want 2", len(verdicts))
	}
	if !verdicts[0].Correct || verdicts[0].Provenance != model.ProvenanceLocal {
		t.Errorf("q1 verdict = %+v, want local pass", verdicts[0])
	}
	if verdicts[1].Correct {
		t.Errorf("q2 verdict = %+v, want fail", verdicts[1])
	}
}

func TestGradeBatchSingleJudgeCall(t *testing.T) {
	judge := &fakeJudge{results: map[string]JudgeResult{
		"q3": {IsCorrect: true, Feedback: "语义一致"},
		"q4": {IsCorrect: false, Feedback: "顺序相反"},
	}}
	g := NewGrader(judge, Strict)

	questions := examQuestions()
	answers := map[string]string{
		"q1": "狗",
		"q2": "对",
		"q3": "植物把光能变成化学能",
		"q4": "上海/北京",
	}

	verdicts := g.GradeBatch(context.Background(), questions, answers)

	if judge.calls != 1 {
		t.Fatalf("judge called %d times, want exactly 1 per submission", judge.calls)
	}
	if got := len(judge.batches[0]); got != 2 {
		t.Fatalf("judge batch size = %d, want 2", got)
	}
	// Deferred items arrive in question order with the raw answers.
	if judge.batches[0][0].ID != "q3" || judge.batches[0][1].ID != "q4" {
		t.Errorf("judge batch order = %s,%s, want q3,q4", judge.batches[0][0].ID, judge.batches[0][1].ID)
	}
	if judge.batches[0][1].UserAnswer != "上海/北京" {
		t.Errorf("judge payload user answer = %q, want raw string", judge.batches[0][1].UserAnswer)
	}

	// Output order equals input question order.
	for i, id := range []string{"q1", "q2", "q3", "q4"} {
		if verdicts[i].QuestionID != id {
			t.Fatalf("verdicts[%d].QuestionID = %s, want %s", i, verdicts[i].QuestionID, id)
		}
	}

	if !verdicts[0].Correct || verdicts[0].Provenance != model.ProvenanceLocal {
		t.Errorf("q1 = %+v, want local pass via option text", verdicts[0])
	}
	if !verdicts[1].Correct {
		t.Errorf("q2 = %+v, want pass (对 normalizes to 正确)", verdicts[1])
	}
	if !verdicts[2].Correct || verdicts[2].Provenance != model.ProvenanceExternal || verdicts[2].Feedback == "" {
		t.Errorf("q3 = %+v, want external pass with feedback", verdicts[2])
	}
	if verdicts[3].Correct || verdicts[3].Provenance != model.ProvenanceExternal {
		t.Errorf("q4 = %+v, want external fail", verdicts[3])
	}
}

func TestGradeBatchJudgeFailureFailsClosed(t *testing.T) {
	judge := &fakeJudge{err: errors.New("quota exceeded")}
	g := NewGrader(judge, Strict)

	questions := examQuestions()
	answers := map[string]string{
		"q1": "B",
		"q2": "正确",
		"q3": "某个主观回答",
		"q4": "另一个主观回答",
	}

	verdicts := g.GradeBatch(context.Background(), questions, answers)

	// Objective verdicts are untouched by the failure.
	if !verdicts[0].Correct || !verdicts[1].Correct {
		t.Errorf("objective verdicts = %+v, %+v, want both correct", verdicts[0], verdicts[1])
	}
	// Every deferred item is incorrect with non-empty feedback.
	for _, v := range verdicts[2:] {
		if v.Correct {
			t.Errorf("%s graded correct despite judge failure", v.QuestionID)
		}
		if v.Feedback == "" {
			t.Errorf("%s has empty feedback after judge failure", v.QuestionID)
		}
	}
}

func TestGradeBatchMissingJudgeEntry(t *testing.T) {
	judge := &fakeJudge{results: map[string]JudgeResult{
		"q3": {IsCorrect: true, Feedback: "正确"},
		// q4 deliberately absent.
	}}
	g := NewGrader(judge, Strict)

	questions := examQuestions()[2:]
	answers := map[string]string{"q3": "近义回答", "q4": "近义回答"}

	verdicts := g.GradeBatch(context.Background(), questions, answers)

	if !verdicts[0].Correct {
		t.Errorf("q3 = %+v, want correct", verdicts[0])
	}
	if verdicts[1].Correct || verdicts[1].Feedback != FeedbackResultMissing {
		t.Errorf("q4 = %+v, want incorrect with missing-result feedback", verdicts[1])
	}
}

func TestGradeBatchUnansweredNeverDeferred(t *testing.T) {
	judge := &fakeJudge{}
	g := NewGrader(judge, Strict)

	questions := examQuestions()
	verdicts := g.GradeBatch(context.Background(), questions, map[string]string{})

	if judge.calls != 0 {
		t.Fatalf("judge called for an all-unanswered batch")
	}
	for _, v := range verdicts {
		if v.Correct {
			t.Errorf("%s graded correct with no answer", v.QuestionID)
		}
		if v.Provenance != model.ProvenanceLocal {
			t.Errorf("%s provenance = %s, want local", v.QuestionID, v.Provenance)
		}
	}
}

func TestGradeBatchIdempotent(t *testing.T) {
	judge := &fakeJudge{results: map[string]JudgeResult{
		"q3": {IsCorrect: true, Feedback: "ok"},
		"q4": {IsCorrect: false, Feedback: "no"},
	}}
	g := NewGrader(judge, Strict)

	questions := examQuestions()
	answers := map[string]string{"q3": "x", "q4": "y"}

	first := g.GradeBatch(context.Background(), questions, answers)
	second := g.GradeBatch(context.Background(), questions, answers)

	if len(first) != len(second) {
		t.Fatalf("verdict counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("verdict %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestGradeOne(t *testing.T) {
	judge := &fakeJudge{results: map[string]JudgeResult{
		"q3": {IsCorrect: true, Feedback: "意思相近，判定正确"},
	}}
	g := NewGrader(judge, Strict)

	q := examQuestions()[2]
	v := g.GradeOne(context.Background(), q, "植物通过叶绿体合成有机物")

	if judge.calls != 1 || len(judge.batches[0]) != 1 {
		t.Fatalf("GradeOne must issue a batch of exactly one")
	}
	if !v.Correct || v.Feedback != "意思相近，判定正确" || v.Provenance != model.ProvenanceExternal {
		t.Errorf("verdict = %+v, want external pass with surfaced feedback", v)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		total   int
		want    int
	}{
		{"empty", 0, 0, 0},
		{"all correct", 5, 5, 100},
		{"none correct", 0, 4, 0},
		{"one third rounds to 33", 1, 3, 33},
		{"two thirds rounds to 67", 2, 3, 67},
		{"half", 1, 2, 50},
		{"five of six rounds to 83", 5, 6, 83},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts := make([]model.Verdict, tt.total)
			for i := range verdicts {
				verdicts[i] = model.Verdict{QuestionID: fmt.Sprintf("q%d", i), Correct: i < tt.correct}
			}
			if got := Score(verdicts); got != tt.want {
				t.Errorf("Score(%d/%d) = %d, want %d", tt.correct, tt.total, got, tt.want)
			}
		})
	}
}

func TestNewRecord(t *testing.T) {
	q := model.Question{ID: "q9", Subject: "历史", Type: model.TypeShortAnswer, Answer: "玄武门之变"}
	v := model.Verdict{QuestionID: "q9", Correct: false, Feedback: "事件名称不符", Provenance: model.ProvenanceExternal}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := NewRecord(q, "安史之乱", v, at)
	if rec.QuestionID != "q9" || rec.Subject != "历史" || rec.Correct || rec.UserAnswer != "安史之乱" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Feedback != v.Feedback || !rec.Timestamp.Equal(at) {
		t.Errorf("record carries wrong feedback or timestamp: %+v", rec)
	}
}
