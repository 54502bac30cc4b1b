package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"microlearn-backend/internal/models"
)

// MaterialRepo owns all Material records. Status invariants are enforced in
// the UPDATE statements themselves: content is set only together with status
// completed (clearing error), and an error message only together with status
// error (clearing content).
type MaterialRepo struct {
	pool *pgxpool.Pool
}

func NewMaterialRepo(pool *pgxpool.Pool) *MaterialRepo {
	return &MaterialRepo{pool: pool}
}

func (r *MaterialRepo) Create(ctx context.Context, m *models.Material) error {
	m.ID = uuid.New()
	m.Status = models.StatusPending
	if m.LessonLength == "" {
		m.LessonLength = models.LengthNormal
	}

	query := `INSERT INTO materials (id, user_id, file_name, mime_type, storage_url, lesson_length, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING uploaded_at`

	return r.pool.QueryRow(ctx, query,
		m.ID, m.UserID, m.FileName, m.MimeType, m.StorageURL, m.LessonLength, m.Status,
	).Scan(&m.UploadedAt)
}

const materialColumns = `id, user_id, file_name, mime_type, storage_url, uploaded_at,
	extracted_text, detected_language, suggested_title, category, lesson_length,
	content, status, error_message`

func (r *MaterialRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+materialColumns+" FROM materials WHERE id = $1", id)
	return scanMaterial(row)
}

func (r *MaterialRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Material, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+materialColumns+" FROM materials WHERE user_id = $1 ORDER BY uploaded_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []*models.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *MaterialRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE materials SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *MaterialRepo) AttachText(ctx context.Context, id uuid.UUID, text string) error {
	_, err := r.pool.Exec(ctx, "UPDATE materials SET extracted_text = $1 WHERE id = $2", text, id)
	return err
}

// AttachContent records a successful pipeline run: content, language, title
// and category land together with the completed status, and any stale error
// is cleared.
func (r *MaterialRepo) AttachContent(ctx context.Context, id uuid.UUID, language, title, category string, content *models.GeneratedContent) error {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal generated content: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE materials
		SET detected_language = $1, suggested_title = $2, category = $3,
		    content = $4, status = $5, error_message = NULL
		WHERE id = $6`,
		language, title, category, contentJSON, models.StatusCompleted, id,
	)
	return err
}

// AttachError records a failed run: error message and error status land
// together, and any partial content is cleared.
func (r *MaterialRepo) AttachError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE materials
		SET error_message = $1, status = $2, content = NULL
		WHERE id = $3`,
		message, models.StatusError, id,
	)
	return err
}

func (r *MaterialRepo) Rename(ctx context.Context, id uuid.UUID, fileName string) error {
	_, err := r.pool.Exec(ctx, "UPDATE materials SET file_name = $1 WHERE id = $2", fileName, id)
	return err
}

func (r *MaterialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM materials WHERE id = $1", id)
	return err
}

// ReplaceQuizQuestions swaps only the quiz slice of an already completed
// material's content; lessons, summary and flashcards stay bit-identical.
func (r *MaterialRepo) ReplaceQuizQuestions(ctx context.Context, id uuid.UUID, questions []models.QuizQuestion) error {
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal quiz questions: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE materials
		SET content = jsonb_set(content, '{quiz_questions}', $1)
		WHERE id = $2 AND status = $3 AND content IS NOT NULL`,
		questionsJSON, id, models.StatusCompleted,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("material %s has no completed content to update", id)
	}
	return nil
}

// Quiz attempts (append-only)

func (r *MaterialRepo) AppendAttempt(ctx context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()

	query := `INSERT INTO quiz_attempts (id, material_id, user_id, total, correct, percentage)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		a.ID, a.MaterialID, a.UserID, a.Total, a.Correct, a.Percentage,
	).Scan(&a.CreatedAt)
}

func (r *MaterialRepo) ListAttempts(ctx context.Context, materialID uuid.UUID) ([]*models.QuizAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, material_id, user_id, total, correct, percentage, created_at
		FROM quiz_attempts WHERE material_id = $1 ORDER BY created_at ASC`, materialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.QuizAttempt
	for rows.Next() {
		a := &models.QuizAttempt{}
		err := rows.Scan(&a.ID, &a.MaterialID, &a.UserID, &a.Total, &a.Correct, &a.Percentage, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (*models.Material, error) {
	m := &models.Material{}
	var contentJSON []byte

	err := row.Scan(
		&m.ID, &m.UserID, &m.FileName, &m.MimeType, &m.StorageURL, &m.UploadedAt,
		&m.ExtractedText, &m.DetectedLanguage, &m.SuggestedTitle, &m.Category,
		&m.LessonLength, &contentJSON, &m.Status, &m.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	if len(contentJSON) > 0 {
		content := &models.GeneratedContent{}
		if err := json.Unmarshal(contentJSON, content); err != nil {
			return nil, fmt.Errorf("unmarshal content for material %s: %w", m.ID, err)
		}
		m.Content = content
	}

	return m, nil
}
