package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"microlearn-backend/internal/models"
	"microlearn-backend/internal/repository"
	"microlearn-backend/internal/services"
	"microlearn-backend/internal/websocket"
)

type Pool struct {
	redis        *redis.Client
	pipeline     *services.Pipeline
	fileExtract  *services.FileExtractService
	jobRepo      *repository.JobRepo
	materialRepo *repository.MaterialRepo
	storagePath  string
	workerCount  int
	stopChan     chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	pipeline *services.Pipeline,
	fileExtract *services.FileExtractService,
	jobRepo *repository.JobRepo,
	materialRepo *repository.MaterialRepo,
	storagePath string,
	workerCount int,
) *Pool {
	return &Pool{
		redis:        redisClient,
		pipeline:     pipeline,
		fileExtract:  fileExtract,
		jobRepo:      jobRepo,
		materialRepo: materialRepo,
		storagePath:  storagePath,
		workerCount:  workerCount,
		stopChan:     make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{
		"queue:" + models.JobMaterialGeneration,
		"queue:" + models.JobQuizRegeneration,
	}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")

		var processErr error
		switch job.Type {
		case models.JobMaterialGeneration:
			processErr = p.processMaterial(ctx, &job)
		case models.JobQuizRegeneration:
			processErr = p.processQuizRegeneration(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.handleSuccess(ctx, &job)
		}

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

// processMaterial extracts the document text if it is not there yet, then
// runs the full generation pipeline and attaches its result. A failure at
// any stage leaves the material without content.
func (p *Pool) processMaterial(ctx context.Context, job *models.Job) error {
	material, err := p.materialRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get material: %w", err)
	}

	p.materialRepo.UpdateStatus(ctx, material.ID, models.StatusProcessing)

	text := ""
	if material.ExtractedText != nil {
		text = *material.ExtractedText
	}

	if text == "" {
		fullPath := filepath.Join(p.storagePath, material.StorageURL)
		extracted, extractErr := p.fileExtract.ExtractTextFromPath(fullPath)
		if extractErr != nil {
			return fmt.Errorf("failed to extract text from %s: %w", material.FileName, extractErr)
		}

		if err := p.materialRepo.AttachText(ctx, material.ID, extracted); err != nil {
			return fmt.Errorf("failed to save extracted text: %w", err)
		}

		log.Printf("Extracted text for material %s (%d chars)", material.ID, len(extracted))
		text = extracted
	}

	onProgress := func(progress int, stage string) {
		p.publish(ctx, job.UserID, models.WSMessage{
			Type: "progress",
			Payload: models.ProgressUpdate{
				JobID:      job.ID,
				MaterialID: material.ID,
				Progress:   progress,
				Stage:      stage,
			},
		})
	}

	result, err := p.pipeline.Generate(ctx, text, material.LessonLength, onProgress)
	if err != nil {
		return err
	}

	if err := p.materialRepo.AttachContent(ctx, material.ID, result.Language, result.Title, result.Category, result.Content); err != nil {
		return fmt.Errorf("failed to save generated content: %w", err)
	}

	return nil
}

// processQuizRegeneration replaces only the quiz slice of a completed
// material. The previous questions go into the prompt as an avoid list.
func (p *Pool) processQuizRegeneration(ctx context.Context, job *models.Job) error {
	material, err := p.materialRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get material: %w", err)
	}

	if material.Status != models.StatusCompleted || material.Content == nil {
		return fmt.Errorf("material %s has no completed content", material.ID)
	}
	if material.ExtractedText == nil || *material.ExtractedText == "" {
		return fmt.Errorf("material %s has no extracted text", material.ID)
	}

	language := ""
	if material.DetectedLanguage != nil {
		language = *material.DetectedLanguage
	}

	questions, err := p.pipeline.RegenerateQuiz(ctx, *material.ExtractedText, language, material.Content.QuizQuestions)
	if err != nil {
		return err
	}

	if err := p.materialRepo.ReplaceQuizQuestions(ctx, material.ID, questions); err != nil {
		return fmt.Errorf("failed to save regenerated quiz: %w", err)
	}

	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			MaterialID: job.ReferenceID,
			ResultType: resultType(job.Type),
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), "queue:"+job.Type, string(jobBytes))
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	// A failed full generation marks the material errored. A failed quiz
	// regeneration does not: the material keeps its existing content.
	if job.Type == models.JobMaterialGeneration {
		p.materialRepo.AttachError(ctx, job.ReferenceID, errMsg)
	}

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			MaterialID:   job.ReferenceID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.redis.Publish(ctx, websocket.UserChannel(userID), string(data))
}

func resultType(jobType string) string {
	if jobType == models.JobQuizRegeneration {
		return "quiz"
	}
	return "material"
}
