package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"microlearn-backend/internal/middleware"
	"microlearn-backend/internal/models"
	"microlearn-backend/internal/repository"
	"microlearn-backend/internal/services"
)

const maxUploadBytes = 50 * 1024 * 1024 // 50MB

type MaterialHandler struct {
	materialRepo *repository.MaterialRepo
	jobRepo      *repository.JobRepo
	quota        *services.QuotaService
	redis        *redis.Client
	storagePath  string
}

func NewMaterialHandler(materialRepo *repository.MaterialRepo, jobRepo *repository.JobRepo, quota *services.QuotaService, redisClient *redis.Client, storagePath string) *MaterialHandler {
	return &MaterialHandler{
		materialRepo: materialRepo,
		jobRepo:      jobRepo,
		quota:        quota,
		redis:        redisClient,
		storagePath:  storagePath,
	}
}

// Upload accepts a document, stores it, creates a pending material and
// enqueues generation. The quota gate runs before any file or database work,
// so a rejected upload leaves no trace and consumes no quota.
func (h *MaterialHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	plan := middleware.GetPlan(r.Context())

	allowed, used, err := h.quota.Allow(r.Context(), userID, plan)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to check upload quota", r))
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, errorResp("QUOTA_EXCEEDED",
			fmt.Sprintf("Daily upload limit of %d reached. Upgrade to premium for unlimited uploads.", h.quota.Limit()), r))
		return
	}

	if r.ContentLength > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 50MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	lessonLength := r.FormValue("lesson_length")
	if lessonLength != "" && lessonLength != models.LengthShort &&
		lessonLength != models.LengthNormal && lessonLength != models.LengthLong {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "lesson_length must be short, normal or long", r))
		return
	}

	// Sniff the first 512 bytes for the MIME type
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	buf = buf[:n]

	mimeType := http.DetectContentType(buf)
	if !isAllowedUpload(mimeType, header.Filename) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "File type not supported", r))
		return
	}

	file.Seek(0, io.SeekStart)

	fileID := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	relPath := filepath.Join("users", userID.String(), "uploads", fileID+ext)

	if err := h.saveFile(relPath, file); err != nil {
		log.Printf("failed to store upload for user %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("UPLOAD_FAILED", "Failed to store file", r))
		return
	}

	material := &models.Material{
		UserID:       userID,
		FileName:     header.Filename,
		MimeType:     mimeType,
		StorageURL:   relPath,
		LessonLength: lessonLength,
	}

	if err := h.materialRepo.Create(r.Context(), material); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create material record", r))
		return
	}

	job := &models.Job{
		UserID:      userID,
		Type:        models.JobMaterialGeneration,
		ReferenceID: material.ID,
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to schedule generation", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	h.redis.LPush(r.Context(), "queue:"+models.JobMaterialGeneration, string(jobBytes))

	if err := h.quota.Record(r.Context(), userID); err != nil {
		log.Printf("failed to record upload quota for user %s: %v", userID, err)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"material": material,
		"job_id":   job.ID,
		"quota": map[string]int{
			"used":  used + 1,
			"limit": h.quota.Limit(),
		},
	})
}

// List returns the caller's materials ordered by the requested sort mode.
func (h *MaterialHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	materials, err := h.materialRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load materials", r))
		return
	}

	sorted := models.SortMaterials(materials, r.URL.Query().Get("sort"))
	if sorted == nil {
		sorted = []*models.Material{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"materials": sorted})
}

func (h *MaterialHandler) Get(w http.ResponseWriter, r *http.Request) {
	material, ok := h.ownedMaterial(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, material)
}

func (h *MaterialHandler) Rename(w http.ResponseWriter, r *http.Request) {
	material, ok := h.ownedMaterial(w, r)
	if !ok {
		return
	}

	var req models.RenameMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	name := strings.TrimSpace(req.FileName)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "file_name is required", r))
		return
	}

	if err := h.materialRepo.Rename(r.Context(), material.ID, name); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to rename material", r))
		return
	}

	material.FileName = name
	writeJSON(w, http.StatusOK, material)
}

func (h *MaterialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	material, ok := h.ownedMaterial(w, r)
	if !ok {
		return
	}

	if err := h.materialRepo.Delete(r.Context(), material.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete material", r))
		return
	}

	// Best effort; the record is already gone.
	if err := os.Remove(filepath.Join(h.storagePath, material.StorageURL)); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove stored file %s: %v", material.StorageURL, err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Material deleted"})
}

// RegenerateQuestions enqueues a quiz-only regeneration. Only completed
// materials qualify; everything except the quiz slice stays untouched.
func (h *MaterialHandler) RegenerateQuestions(w http.ResponseWriter, r *http.Request) {
	material, ok := h.ownedMaterial(w, r)
	if !ok {
		return
	}

	if material.Status != models.StatusCompleted {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Material has no completed content to regenerate", r))
		return
	}

	job := &models.Job{
		UserID:      material.UserID,
		Type:        models.JobQuizRegeneration,
		ReferenceID: material.ID,
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to schedule regeneration", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	h.redis.LPush(r.Context(), "queue:"+models.JobQuizRegeneration, string(jobBytes))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID})
}

// SubmitAttempt grades the submitted answers against the material's current
// quiz and appends the result. Attempts are append-only history.
func (h *MaterialHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	material, ok := h.ownedMaterial(w, r)
	if !ok {
		return
	}

	if material.Status != models.StatusCompleted || material.Content == nil {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Material has no quiz to attempt", r))
		return
	}

	var req models.SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	total, correct, percentage := gradeAttempt(material.Content.QuizQuestions, req.Answers)

	attempt := &models.QuizAttempt{
		MaterialID: material.ID,
		UserID:     material.UserID,
		Total:      total,
		Correct:    correct,
		Percentage: percentage,
	}

	if err := h.materialRepo.AppendAttempt(r.Context(), attempt); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save attempt", r))
		return
	}

	writeJSON(w, http.StatusCreated, attempt)
}

func (h *MaterialHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	material, ok := h.ownedMaterial(w, r)
	if !ok {
		return
	}

	attempts, err := h.materialRepo.ListAttempts(r.Context(), material.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load attempts", r))
		return
	}
	if attempts == nil {
		attempts = []*models.QuizAttempt{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}

func (h *MaterialHandler) SupportedFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"formats": []map[string]string{
			{"extension": ".pdf", "mime_type": "application/pdf", "description": "PDF Document"},
			{"extension": ".docx", "mime_type": "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "description": "Word Document"},
			{"extension": ".pptx", "mime_type": "application/vnd.openxmlformats-officedocument.presentationml.presentation", "description": "PowerPoint Presentation"},
			{"extension": ".txt", "mime_type": "text/plain", "description": "Plain Text"},
		},
	})
}

// ownedMaterial loads the {id} material and enforces ownership. On failure
// it writes the error response and returns ok=false.
func (h *MaterialHandler) ownedMaterial(w http.ResponseWriter, r *http.Request) (*models.Material, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid material ID", r))
		return nil, false
	}

	material, err := h.materialRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Material not found", r))
		return nil, false
	}

	if material.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	return material, true
}

func (h *MaterialHandler) saveFile(relPath string, src io.Reader) error {
	dst := filepath.Join(h.storagePath, relPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, src)
	return err
}

// gradeAttempt scores submitted answers against the quiz. Unanswered or
// out-of-range questions count as wrong; duplicate answers for the same
// question keep the last one.
func gradeAttempt(questions []models.QuizQuestion, answers []models.AttemptAnswer) (total, correct int, percentage float64) {
	total = len(questions)
	if total == 0 {
		return 0, 0, 0
	}

	chosen := make(map[int]int, len(answers))
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= total {
			continue
		}
		chosen[a.QuestionIndex] = a.AnswerIndex
	}

	for i, q := range questions {
		if answer, ok := chosen[i]; ok && answer == q.CorrectAnswer {
			correct++
		}
	}

	percentage = float64(correct) / float64(total) * 100
	return total, correct, percentage
}

func isAllowedUpload(mime, filename string) bool {
	allowed := map[string]bool{
		"application/pdf":          true,
		"text/plain":               true,
		"application/zip":          true, // docx/pptx containers sniff as zip
		"application/octet-stream": true,
	}
	if !allowed[mime] && !strings.HasPrefix(mime, "text/plain") {
		return false
	}

	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".docx") ||
		strings.HasSuffix(lower, ".pptx") || strings.HasSuffix(lower, ".txt")
}
