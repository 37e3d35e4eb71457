package model

import "time"

// QuestionType identifies the shape of a question and how it is graded.
type QuestionType string

const (
	// TypeMultipleChoice is a single-selection question with lettered options.
	TypeMultipleChoice QuestionType = "multiple_choice"
	// TypeTrueFalse is a 正确/错误 judgement question.
	TypeTrueFalse QuestionType = "true_false"
	// TypeFillBlank is a fill-in-the-blank question; multi-blank answers are
	// separated by " / " in the canonical answer.
	TypeFillBlank QuestionType = "fill_blank"
	// TypeShortAnswer is a free-form written answer.
	TypeShortAnswer QuestionType = "short_answer"
)

// Objective reports whether the type is always resolvable without the remote
// judge (multiple choice and true/false).
func (t QuestionType) Objective() bool {
	return t == TypeMultipleChoice || t == TypeTrueFalse
}

// Valid reports whether the type is one of the four known shapes.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeFillBlank, TypeShortAnswer:
		return true
	}
	return false
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is a single authored question. Immutable once created.
type Question struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"question"`
	Options     []string     `json:"options,omitempty"`
	Answer      string       `json:"answer"`
	Explanation string       `json:"explanation"`
	Difficulty  Difficulty   `json:"difficulty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Exam is an ordered set of questions with a time limit.
type Exam struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Subject   string     `json:"subject"`
	Questions []Question `json:"questions"`
	// Duration is the exam time limit in minutes.
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// CandidateAnswer is one attempt at one question. An empty Raw string means
// the question was left unanswered.
type CandidateAnswer struct {
	QuestionID string `json:"question_id"`
	Raw        string `json:"raw"`
}

// Provenance records whether a correctness decision was made locally or by
// the remote judge.
type Provenance string

const (
	ProvenanceLocal    Provenance = "local"
	ProvenanceExternal Provenance = "external"
)

// Verdict is the outcome of grading one candidate answer. Feedback is only
// populated when the remote judge was consulted (or its fallback applied).
type Verdict struct {
	QuestionID string     `json:"question_id"`
	Correct    bool       `json:"correct"`
	Feedback   string     `json:"feedback,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// AnswerRecord is the persisted result of one graded answer. Immutable once
// created; owned by the history store.
type AnswerRecord struct {
	QuestionID string    `json:"question_id"`
	Subject    string    `json:"subject"`
	Correct    bool      `json:"is_correct"`
	UserAnswer string    `json:"user_answer"`
	Feedback   string    `json:"feedback,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecordSink receives graded answers for persistence. The engine only
// appends; it never reads history back.
type RecordSink func(AnswerRecord)

// MasteryData summarizes a learner's standing in one subject.
type MasteryData struct {
	Subject string `json:"subject"`
	// CorrectRate is the share of recorded answers that were correct, 0..1.
	CorrectRate float64 `json:"correct_rate"`
	// Coverage is the share of the subject's questions attempted at least once, 0..1.
	Coverage float64 `json:"coverage"`
	// MasteryScore is a combined 0..100 rating.
	MasteryScore int `json:"mastery_score"`
}

// QuestionImport is used for loading questions from JSON files.
type QuestionImport struct {
	Type        QuestionType `json:"type"`
	Subject     string       `json:"subject"`
	Prompt      string       `json:"question"`
	Options     []string     `json:"options,omitempty"`
	Answer      string       `json:"answer"`
	Explanation string       `json:"explanation"`
	Difficulty  Difficulty   `json:"difficulty"`
}
