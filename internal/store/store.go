package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Quarong/Huiti-AI-Plus/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists the question bank, exams, and the answer-record history.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		type TEXT NOT NULL,
		prompt TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		answer TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'medium',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subject TEXT NOT NULL,
		duration INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_questions (
		exam_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (exam_id, position),
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS answer_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		is_correct INTEGER NOT NULL,
		user_answer TEXT NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS import_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuestion stores a question, assigning an id and creation time when
// they are missing, and returns the id.
func (s *Store) InsertQuestion(q model.Question) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	options, err := json.Marshal(q.Options)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO questions (id, subject, type, prompt, options, answer, explanation, difficulty, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Subject, q.Type, q.Prompt, string(options), q.Answer, q.Explanation, q.Difficulty, q.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return q.ID, nil
}

const questionColumns = `id, subject, type, prompt, options, answer, explanation, difficulty, created_at`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var options string
	err := row.Scan(&q.ID, &q.Subject, &q.Type, &q.Prompt, &options, &q.Answer, &q.Explanation, &q.Difficulty, &q.CreatedAt)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
	}
	return q, nil
}

// GetQuestion returns one question by id.
func (s *Store) GetQuestion(id string) (model.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	return scanQuestion(row)
}

// ListQuestions returns all questions in creation order.
func (s *Store) ListQuestions() ([]model.Question, error) {
	return s.ListQuestionsFiltered("", "", "")
}

// ListQuestionsFiltered returns questions matching the given filters.
// Empty strings mean no filtering on that field.
func (s *Store) ListQuestionsFiltered(subject string, qType model.QuestionType, difficulty model.Difficulty) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, subject)
	}
	if qType != "" {
		query += ` AND type = ?`
		args = append(args, qType)
	}
	if difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, difficulty)
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// DeleteQuestion removes a question and its exam references.
func (s *Store) DeleteQuestion(id string) error {
	if _, err := s.db.Exec(`DELETE FROM exam_questions WHERE question_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	return err
}

// QuestionCount returns the total number of questions.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// CreateExam stores an exam and its ordered question list, assigning an id
// when missing. Every referenced question must already exist.
func (s *Store) CreateExam(e model.Exam) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO exams (id, title, subject, duration, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Subject, e.Duration, e.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	for i, q := range e.Questions {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM questions WHERE id = ?`, q.ID).Scan(&exists); err != nil {
			return "", err
		}
		if exists == 0 {
			return "", fmt.Errorf("exam references unknown question %s", q.ID)
		}
		_, err = tx.Exec(
			`INSERT INTO exam_questions (exam_id, question_id, position) VALUES (?, ?, ?)`,
			e.ID, q.ID, i,
		)
		if err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return e.ID, nil
}

// GetExam returns an exam with its questions resolved in position order.
func (s *Store) GetExam(id string) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRow(
		`SELECT id, title, subject, duration, created_at FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.Title, &e.Subject, &e.Duration, &e.CreatedAt)
	if err != nil {
		return e, err
	}

	rows, err := s.db.Query(
		`SELECT `+prefixedQuestionColumns("q")+`
		 FROM exam_questions eq JOIN questions q ON q.id = eq.question_id
		 WHERE eq.exam_id = ? ORDER BY eq.position`, id,
	)
	if err != nil {
		return e, err
	}
	defer rows.Close()
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return e, err
		}
		e.Questions = append(e.Questions, q)
	}
	return e, rows.Err()
}

func prefixedQuestionColumns(alias string) string {
	return alias + `.id, ` + alias + `.subject, ` + alias + `.type, ` + alias + `.prompt, ` +
		alias + `.options, ` + alias + `.answer, ` + alias + `.explanation, ` +
		alias + `.difficulty, ` + alias + `.created_at`
}

// ListExams returns all exams, newest first, with question counts but
// without resolving the full question list.
func (s *Store) ListExams() ([]model.Exam, error) {
	rows, err := s.db.Query(
		`SELECT e.id, e.title, e.subject, e.duration, e.created_at
		 FROM exams e ORDER BY e.created_at DESC, e.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Subject, &e.Duration, &e.CreatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// AppendRecord appends one graded answer to the history. This is the
// engine's record sink; records are immutable once written.
func (s *Store) AppendRecord(r model.AnswerRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO answer_records (question_id, subject, is_correct, user_answer, feedback, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.QuestionID, r.Subject, r.Correct, r.UserAnswer, r.Feedback, r.Timestamp,
	)
	return err
}

// ListRecords returns the full answer history, oldest first.
func (s *Store) ListRecords() ([]model.AnswerRecord, error) {
	rows, err := s.db.Query(
		`SELECT question_id, subject, is_correct, user_answer, feedback, timestamp
		 FROM answer_records ORDER BY timestamp, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.AnswerRecord
	for rows.Next() {
		var r model.AnswerRecord
		if err := rows.Scan(&r.QuestionID, &r.Subject, &r.Correct, &r.UserAnswer, &r.Feedback, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MasteryBySubject summarizes the history per subject: correct rate over all
// recorded answers, coverage of the subject's bank, and a combined 0-100
// mastery score weighting accuracy over breadth.
func (s *Store) MasteryBySubject() ([]model.MasteryData, error) {
	totals := make(map[string]int)
	var subjects []string
	rows, err := s.db.Query(`SELECT subject, COUNT(*) FROM questions GROUP BY subject ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var subject string
		var n int
		if err := rows.Scan(&subject, &n); err != nil {
			rows.Close()
			return nil, err
		}
		totals[subject] = n
		subjects = append(subjects, subject)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	type tally struct {
		answered  int
		correct   int
		attempted int
	}
	tallies := make(map[string]*tally)
	rows, err = s.db.Query(
		`SELECT subject, COUNT(*), SUM(is_correct), COUNT(DISTINCT question_id)
		 FROM answer_records GROUP BY subject`,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var subject string
		var t tally
		if err := rows.Scan(&subject, &t.answered, &t.correct, &t.attempted); err != nil {
			rows.Close()
			return nil, err
		}
		tallies[subject] = &t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.MasteryData, 0, len(subjects))
	for _, subject := range subjects {
		m := model.MasteryData{Subject: subject}
		if t := tallies[subject]; t != nil && t.answered > 0 {
			m.CorrectRate = float64(t.correct) / float64(t.answered)
			if totals[subject] > 0 {
				m.Coverage = math.Min(1, float64(t.attempted)/float64(totals[subject]))
			}
		}
		m.MasteryScore = int(math.Round(60*m.CorrectRate + 40*m.Coverage))
		out = append(out, m)
	}
	return out, nil
}
