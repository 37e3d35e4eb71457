// Package handler exposes the engine over a JSON HTTP API: authentication,
// the question bank, practice rounds, and timed exam sessions.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Quarong/Huiti-AI-Plus/internal/exam"
	"github.com/Quarong/Huiti-AI-Plus/internal/grading"
	appI18n "github.com/Quarong/Huiti-AI-Plus/internal/i18n"
	"github.com/Quarong/Huiti-AI-Plus/internal/model"
	"github.com/Quarong/Huiti-AI-Plus/internal/practice"
	"github.com/Quarong/Huiti-AI-Plus/internal/store"
)

// Config holds handler-level settings.
type Config struct {
	// Seed fixes the practice shuffle order when non-zero, for
	// reproducible runs. Zero draws a fresh seed per round.
	Seed          uint64
	SecureCookies bool
}

// Handler holds shared dependencies for HTTP handlers. Exam sessions and
// practice rounds live in memory; only their graded records are persisted.
type Handler struct {
	store  *store.Store
	grader *grading.Grader
	config Config

	mu        sync.Mutex
	sessions  map[string]*liveSession
	practices map[string]*practice.Runner
}

// liveSession pairs an exam session with its clock goroutine's cancel.
type liveSession struct {
	sess   *exam.Session
	cancel context.CancelFunc
}

// New creates a new Handler.
func New(s *store.Store, g *grading.Grader, cfg Config) *Handler {
	return &Handler{
		store:     s,
		grader:    g,
		config:    cfg,
		sessions:  make(map[string]*liveSession),
		practices: make(map[string]*practice.Runner),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)
	r.Post("/api/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/api/questions", h.handleListQuestions)
		r.Get("/api/subjects", h.handleListSubjects)
		r.Get("/api/mastery", h.handleMastery)
		r.Get("/api/history", h.handleHistory)

		r.Post("/api/practice", h.handleStartPractice)
		r.Get("/api/practice/{practiceID}", h.handlePracticeCurrent)
		r.Post("/api/practice/{practiceID}/answer", h.handlePracticeAnswer)
		r.Post("/api/practice/{practiceID}/reshuffle", h.handlePracticeReshuffle)

		r.Get("/api/exams", h.handleListExams)
		r.Get("/api/exams/{examID}", h.handleGetExam)
		r.Post("/api/exams/{examID}/sessions", h.handleStartSession)
		r.Get("/api/sessions/{sessionID}", h.handleSessionState)
		r.Post("/api/sessions/{sessionID}/answer", h.handleSessionAnswer)
		r.Post("/api/sessions/{sessionID}/submit", h.handleSessionSubmit)
		r.Get("/api/sessions/{sessionID}/report", h.handleSessionReport)
		r.Post("/api/sessions/{sessionID}/abandon", h.handleSessionAbandon)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Post("/api/admin/questions", h.handleCreateQuestion)
			r.Post("/api/admin/questions/import", h.handleImportQuestions)
			r.Delete("/api/admin/questions/{questionID}", h.handleDeleteQuestion)
			r.Post("/api/admin/exams", h.handleCreateExam)
			r.Post("/api/admin/users", h.handleCreateUser)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// questionView is the learner-facing shape of a question: the canonical
// answer and explanation stay server-side until the answer is graded.
type questionView struct {
	ID         string             `json:"id"`
	Subject    string             `json:"subject"`
	Type       model.QuestionType `json:"type"`
	Prompt     string             `json:"question"`
	Options    []string           `json:"options,omitempty"`
	Difficulty model.Difficulty   `json:"difficulty"`
}

func redact(q model.Question) questionView {
	return questionView{
		ID:         q.ID,
		Subject:    q.Subject,
		Type:       q.Type,
		Prompt:     q.Prompt,
		Options:    q.Options,
		Difficulty: q.Difficulty,
	}
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	qType := model.QuestionType(r.URL.Query().Get("type"))
	difficulty := model.Difficulty(r.URL.Query().Get("difficulty"))

	questions, err := h.store.ListQuestionsFiltered(subject, qType, difficulty)
	if err != nil {
		slog.Error("list questions", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, redact(q))
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListQuestions()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, practice.Subjects(questions))
}

func (h *Handler) handleMastery(w http.ResponseWriter, r *http.Request) {
	mastery, err := h.store.MasteryBySubject()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, mastery)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportHistory()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, export)
}

func (h *Handler) handleStartPractice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	questions, err := h.store.ListQuestionsFiltered(req.Subject, "", "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	seed := h.config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	runner, err := practice.NewRunner(questions, seed, h.grader, h.recordSink())
	if err != nil {
		if errors.Is(err, practice.ErrNoQuestions) {
			respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "NoQuestions"))
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.practices[id] = runner
	h.mu.Unlock()

	current, _ := runner.Current()
	slog.Info("practice started", "id", id, "subject", req.Subject, "questions", runner.Progress().Total)
	respondJSON(w, http.StatusCreated, map[string]any{
		"practice_id": id,
		"progress":    runner.Progress(),
		"current":     redact(current),
	})
}

func (h *Handler) practiceRunner(id string) *practice.Runner {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.practices[id]
}

func (h *Handler) handlePracticeCurrent(w http.ResponseWriter, r *http.Request) {
	runner := h.practiceRunner(chi.URLParam(r, "practiceID"))
	if runner == nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}

	current, err := runner.Current()
	if errors.Is(err, practice.ErrExhausted) {
		respondJSON(w, http.StatusOK, map[string]any{
			"finished": true,
			"progress": runner.Progress(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"finished": false,
		"progress": runner.Progress(),
		"current":  redact(current),
	})
}

func (h *Handler) handlePracticeAnswer(w http.ResponseWriter, r *http.Request) {
	runner := h.practiceRunner(chi.URLParam(r, "practiceID"))
	if runner == nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	question, err := runner.Current()
	if errors.Is(err, practice.ErrExhausted) {
		respondError(w, http.StatusConflict, "practice round finished")
		return
	}

	verdict, err := runner.Answer(r.Context(), req.Answer)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	resp := map[string]any{
		"verdict":     verdict,
		"answer":      question.Answer,
		"explanation": question.Explanation,
		"progress":    runner.Progress(),
	}
	if next, err := runner.Current(); err == nil {
		resp["next"] = redact(next)
	} else {
		resp["finished"] = true
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePracticeReshuffle(w http.ResponseWriter, r *http.Request) {
	runner := h.practiceRunner(chi.URLParam(r, "practiceID"))
	if runner == nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}
	runner.Reshuffle()
	current, _ := runner.Current()
	respondJSON(w, http.StatusOK, map[string]any{
		"progress": runner.Progress(),
		"current":  redact(current),
	})
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetExam(chi.URLParam(r, "examID"))
	if err != nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "ExamNotFound"))
		return
	}

	views := make([]questionView, 0, len(e.Questions))
	for _, q := range e.Questions {
		views = append(views, redact(q))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":        e.ID,
		"title":     e.Title,
		"subject":   e.Subject,
		"duration":  e.Duration,
		"questions": views,
	})
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetExam(chi.URLParam(r, "examID"))
	if err != nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "ExamNotFound"))
		return
	}
	if len(e.Questions) == 0 {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "NoQuestions"))
		return
	}

	sess := exam.NewSession(e, h.grader, h.recordSink())
	if err := sess.Start(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The clock outlives the request; it stops itself when the session
	// leaves the in-progress state or the session is abandoned.
	clockCtx, cancel := context.WithCancel(context.Background())
	go sess.RunClock(clockCtx)

	id := uuid.NewString()
	h.mu.Lock()
	h.sessions[id] = &liveSession{sess: sess, cancel: cancel}
	h.mu.Unlock()

	slog.Info("exam session started", "session", id, "exam", e.ID, "duration_min", e.Duration)
	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"exam_id":    e.ID,
		"time_left":  sess.TimeLeft(),
		"state":      sess.State(),
	})
}

func (h *Handler) liveSession(id string) *liveSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}

func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request) {
	ls := h.liveSession(chi.URLParam(r, "sessionID"))
	if ls == nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"state":      ls.sess.State(),
		"time_left":  ls.sess.TimeLeft(),
		"answers":    ls.sess.Answers(),
		"unanswered": ls.sess.UnansweredCount(),
	})
}

func (h *Handler) handleSessionAnswer(w http.ResponseWriter, r *http.Request) {
	ls := h.liveSession(chi.URLParam(r, "sessionID"))
	if ls == nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}

	var req model.CandidateAnswer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := ls.sess.SetAnswer(req.QuestionID, req.Raw); err != nil {
		switch {
		case errors.Is(err, exam.ErrUnknownQuestion):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, exam.ErrNotInProgress):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"time_left":  ls.sess.TimeLeft(),
		"unanswered": ls.sess.UnansweredCount(),
	})
}

func (h *Handler) handleSessionSubmit(w http.ResponseWriter, r *http.Request) {
	ls := h.liveSession(chi.URLParam(r, "sessionID"))
	if ls == nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}

	var req struct {
		Force bool `json:"force"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	report, err := ls.sess.Submit(r.Context(), req.Force)
	if err != nil {
		var unanswered *exam.UnansweredError
		switch {
		case errors.As(err, &unanswered):
			// The confirmation step: the client re-submits with force
			// after the learner agrees.
			respondJSON(w, http.StatusConflict, map[string]any{
				"unanswered": unanswered.Count,
				"message":    appI18n.Tp(r.Context(), "UnansweredConfirm", unanswered.Count),
			})
		case errors.Is(err, exam.ErrNotInProgress):
			respondError(w, http.StatusConflict, err.Error())
		default:
			slog.Error("submit failed", "error", err)
			respondError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "SubmitFailed"))
		}
		return
	}

	ls.cancel()
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	ls := h.liveSession(chi.URLParam(r, "sessionID"))
	if ls == nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}
	report, err := ls.sess.Report()
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleSessionAbandon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	h.mu.Lock()
	ls := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ls == nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}

	ls.cancel()
	ls.sess.Reset()
	slog.Info("exam session abandoned", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

// recordSink persists graded answers; a storage failure is logged, never
// surfaced into the grading path.
func (h *Handler) recordSink() model.RecordSink {
	return func(rec model.AnswerRecord) {
		if err := h.store.AppendRecord(rec); err != nil {
			slog.Error("append answer record", "question", rec.QuestionID, "error", err)
		}
	}
}
