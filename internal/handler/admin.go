package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"

	"github.com/Quarong/Huiti-AI-Plus/internal/model"
)

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var qi model.QuestionImport
	if err := json.NewDecoder(r.Body).Decode(&qi); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if !qi.Type.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown question type %q", qi.Type))
		return
	}
	if qi.Prompt == "" || qi.Answer == "" {
		respondError(w, http.StatusBadRequest, "question and answer required")
		return
	}

	id, err := h.store.InsertQuestion(model.Question{
		Subject:     qi.Subject,
		Type:        qi.Type,
		Prompt:      qi.Prompt,
		Options:     qi.Options,
		Answer:      qi.Answer,
		Explanation: qi.Explanation,
		Difficulty:  qi.Difficulty,
	})
	if err != nil {
		slog.Error("failed to insert question", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleImportQuestions bulk-loads a JSON array of questions. The upload is
// hashed so re-posting the same file is a no-op.
func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("questions_file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	storedHash, err := h.store.GetImportedFileHash(header.Filename)
	if err != nil {
		slog.Error("failed to check import status", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if storedHash == hash {
		respondJSON(w, http.StatusOK, map[string]any{"imported": 0, "duplicate": true})
		return
	}

	var imports []model.QuestionImport
	if err := json.Unmarshal(data, &imports); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	for i, qi := range imports {
		if !qi.Type.Valid() {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("entry %d: unknown question type %q", i, qi.Type))
			return
		}
		_, err := h.store.InsertQuestion(model.Question{
			Subject:     qi.Subject,
			Type:        qi.Type,
			Prompt:      qi.Prompt,
			Options:     qi.Options,
			Answer:      qi.Answer,
			Explanation: qi.Explanation,
			Difficulty:  qi.Difficulty,
		})
		if err != nil {
			slog.Error("failed to insert question", "error", err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if err := h.store.SetImportedFileHash(header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("imported questions", "filename", header.Filename, "count", len(imports))
	respondJSON(w, http.StatusOK, map[string]any{"imported": len(imports)})
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")
	if err := h.store.DeleteQuestion(id); err != nil {
		slog.Error("failed to delete question", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string   `json:"title"`
		Subject     string   `json:"subject"`
		Duration    int      `json:"duration"`
		QuestionIDs []string `json:"question_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Title == "" || len(req.QuestionIDs) == 0 {
		respondError(w, http.StatusBadRequest, "title and question_ids required")
		return
	}
	if req.Duration <= 0 {
		respondError(w, http.StatusBadRequest, "duration must be positive")
		return
	}

	questions := make([]model.Question, len(req.QuestionIDs))
	for i, qid := range req.QuestionIDs {
		questions[i] = model.Question{ID: qid}
	}

	id, err := h.store.CreateExam(model.Exam{
		Title:     req.Title,
		Subject:   req.Subject,
		Duration:  req.Duration,
		Questions: questions,
	})
	if err != nil {
		slog.Error("failed to create exam", "error", err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("exam created", "id", id, "title", req.Title, "questions", len(req.QuestionIDs))
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
		Role        string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	role := model.UserRole(req.Role)
	if role == "" {
		role = model.UserRoleLearner
	}

	id, err := h.store.CreateUser(model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}
