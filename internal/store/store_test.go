package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/Quarong/Huiti-AI-Plus/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestQuestion(t *testing.T, s *Store, subject string, qType model.QuestionType, answer string, options ...string) string {
	t.Helper()
	id, err := s.InsertQuestion(model.Question{
		Subject:     subject,
		Type:        qType,
		Prompt:      "prompt for " + answer,
		Options:     options,
		Answer:      answer,
		Explanation: "explanation for " + answer,
		Difficulty:  model.DifficultyMedium,
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return id
}

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	id := insertTestQuestion(t, s, "生物", model.TypeMultipleChoice, "B", "猫", "狗", "鸟")
	if id == "" {
		t.Fatal("InsertQuestion returned empty id")
	}

	q, err := s.GetQuestion(id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Subject != "生物" || q.Type != model.TypeMultipleChoice || q.Answer != "B" {
		t.Errorf("question = %+v", q)
	}
	if len(q.Options) != 3 || q.Options[1] != "狗" {
		t.Errorf("options round-trip = %v", q.Options)
	}
	if q.CreatedAt.IsZero() {
		t.Error("created_at not assigned")
	}

	if _, err := s.GetQuestion("missing"); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	insertTestQuestion(t, s, "历史", model.TypeShortAnswer, "贞观之治")
	list, err := s.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(list))
	}

	if err := s.DeleteQuestion(id); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	count, _ = s.QuestionCount()
	if count != 1 {
		t.Errorf("expected 1 question after delete, got %d", count)
	}
}

func TestListQuestionsFiltered(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, "生物", model.TypeTrueFalse, "正确")
	insertTestQuestion(t, s, "生物", model.TypeShortAnswer, "光合作用")
	insertTestQuestion(t, s, "历史", model.TypeTrueFalse, "错误")

	bySubject, err := s.ListQuestionsFiltered("生物", "", "")
	if err != nil {
		t.Fatalf("filter by subject: %v", err)
	}
	if len(bySubject) != 2 {
		t.Errorf("subject filter = %d questions, want 2", len(bySubject))
	}

	byType, err := s.ListQuestionsFiltered("", model.TypeTrueFalse, "")
	if err != nil {
		t.Fatalf("filter by type: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("type filter = %d questions, want 2", len(byType))
	}

	both, err := s.ListQuestionsFiltered("历史", model.TypeTrueFalse, "")
	if err != nil {
		t.Fatalf("filter by both: %v", err)
	}
	if len(both) != 1 || both[0].Subject != "历史" {
		t.Errorf("combined filter = %+v", both)
	}
}

func TestExamRoundTrip(t *testing.T) {
	s := newTestStore(t)
	q1 := insertTestQuestion(t, s, "生物", model.TypeTrueFalse, "正确")
	q2 := insertTestQuestion(t, s, "生物", model.TypeShortAnswer, "光合作用")
	q3 := insertTestQuestion(t, s, "生物", model.TypeMultipleChoice, "A", "甲", "乙")

	examID, err := s.CreateExam(model.Exam{
		Title:    "生物期中卷",
		Subject:  "生物",
		Duration: 45,
		Questions: []model.Question{
			{ID: q3}, {ID: q1}, {ID: q2},
		},
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	e, err := s.GetExam(examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if e.Title != "生物期中卷" || e.Duration != 45 {
		t.Errorf("exam = %+v", e)
	}
	// Question order must survive the round trip.
	wantOrder := []string{q3, q1, q2}
	if len(e.Questions) != 3 {
		t.Fatalf("exam has %d questions, want 3", len(e.Questions))
	}
	for i, want := range wantOrder {
		if e.Questions[i].ID != want {
			t.Errorf("question %d = %s, want %s", i, e.Questions[i].ID, want)
		}
	}
	// Resolved questions carry full data, not just ids.
	if e.Questions[0].Answer != "A" || len(e.Questions[0].Options) != 2 {
		t.Errorf("resolved question = %+v", e.Questions[0])
	}

	exams, err := s.ListExams()
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 1 {
		t.Errorf("ListExams = %d exams, want 1", len(exams))
	}

	// Unknown question references are rejected.
	_, err = s.CreateExam(model.Exam{
		Title:     "坏试卷",
		Subject:   "生物",
		Duration:  10,
		Questions: []model.Question{{ID: "does-not-exist"}},
	})
	if err == nil {
		t.Error("CreateExam accepted an unknown question reference")
	}
}

func TestRecordsAndMastery(t *testing.T) {
	s := newTestStore(t)
	q1 := insertTestQuestion(t, s, "生物", model.TypeTrueFalse, "正确")
	insertTestQuestion(t, s, "生物", model.TypeShortAnswer, "光合作用")
	insertTestQuestion(t, s, "历史", model.TypeTrueFalse, "错误")

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	records := []model.AnswerRecord{
		{QuestionID: q1, Subject: "生物", Correct: true, UserAnswer: "对", Timestamp: base},
		{QuestionID: q1, Subject: "生物", Correct: false, UserAnswer: "错", Timestamp: base.Add(time.Minute)},
	}
	for _, r := range records {
		if err := s.AppendRecord(r); err != nil {
			t.Fatalf("AppendRecord: %v", err)
		}
	}

	got, err := s.ListRecords()
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRecords = %d, want 2", len(got))
	}
	if got[0].UserAnswer != "对" || got[1].UserAnswer != "错" {
		t.Errorf("records out of order: %+v", got)
	}

	mastery, err := s.MasteryBySubject()
	if err != nil {
		t.Fatalf("MasteryBySubject: %v", err)
	}
	if len(mastery) != 2 {
		t.Fatalf("mastery covers %d subjects, want 2", len(mastery))
	}
	byName := make(map[string]model.MasteryData)
	for _, m := range mastery {
		byName[m.Subject] = m
	}

	bio := byName["生物"]
	if bio.CorrectRate != 0.5 {
		t.Errorf("生物 correct rate = %v, want 0.5", bio.CorrectRate)
	}
	if bio.Coverage != 0.5 {
		t.Errorf("生物 coverage = %v, want 0.5 (1 of 2 questions attempted)", bio.Coverage)
	}
	// round(60*0.5 + 40*0.5) = 50
	if bio.MasteryScore != 50 {
		t.Errorf("生物 mastery = %d, want 50", bio.MasteryScore)
	}

	hist := byName["历史"]
	if hist.CorrectRate != 0 || hist.Coverage != 0 || hist.MasteryScore != 0 {
		t.Errorf("unpracticed subject mastery = %+v, want zeros", hist)
	}

	export, err := s.ExportHistory()
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if len(export.Records) != 2 || len(export.Subjects) != 2 {
		t.Errorf("export = %d records, %d subjects", len(export.Records), len(export.Subjects))
	}
	if export.ExportedAt.IsZero() {
		t.Error("export timestamp not set")
	}
}

func TestImportFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("questions/bio.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("unseen file hash = %q, want empty", hash)
	}

	if err := s.SetImportedFileHash("questions/bio.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash("questions/bio.json")
	if hash != "abc123" {
		t.Errorf("hash = %q, want abc123", hash)
	}

	// Upsert overwrites.
	if err := s.SetImportedFileHash("questions/bio.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash upsert: %v", err)
	}
	hash, _ = s.GetImportedFileHash("questions/bio.json")
	if hash != "def456" {
		t.Errorf("hash after upsert = %q, want def456", hash)
	}
}

func TestUsersAndAuthSessions(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id, err := s.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: "$2a$10$fakehash",
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := s.GetUserByUsername("admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id || u.Role != model.UserRoleAdmin {
		t.Errorf("user = %+v", u)
	}

	missing, err := s.GetUserByUsername("nobody")
	if err != nil || missing != nil {
		t.Errorf("missing user = %v, %v, want nil, nil", missing, err)
	}

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != id {
		t.Errorf("session = %+v", sess)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(token)
	if err != nil || sess != nil {
		t.Errorf("deleted session = %v, %v, want nil, nil", sess, err)
	}
}
