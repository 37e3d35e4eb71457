package model

import "time"

// ExamReport is the final result of one exam attempt, consumed by the review
// surface once the session reaches its terminal state.
type ExamReport struct {
	ExamID string `json:"exam_id"`
	Title  string `json:"title"`
	// Score is round(100 * correct / total), an exact integer 0..100.
	Score    int            `json:"score"`
	Correct  int            `json:"correct"`
	Total    int            `json:"total"`
	Verdicts []Verdict      `json:"verdicts"`
	Records  []AnswerRecord `json:"records"`
	// TotalDurationMinutes is the exam's configured time limit.
	TotalDurationMinutes int       `json:"total_duration_minutes"`
	SubmittedAt          time.Time `json:"submitted_at"`
	// Forced is true when the countdown expired and submission was automatic.
	Forced bool `json:"forced"`
}

// HistoryExport is the top-level JSON structure for answer history export.
type HistoryExport struct {
	ExportedAt time.Time      `json:"exported_at"`
	Subjects   []MasteryData  `json:"subjects"`
	Records    []AnswerRecord `json:"records"`
}
