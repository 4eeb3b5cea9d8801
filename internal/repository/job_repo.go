package repository

import (
	"context"
	"errors"
	"time"

	"github.com/colby/bambulog/internal/domain"
	"gorm.io/gorm"
)

// InsertResult tags the outcome of an insert so the correlator's no-op
// branch on a duplicate is an explicit decision rather than a swallowed
// constraint error.
type InsertResult int

const (
	InsertFailed InsertResult = iota
	InsertCreated
	InsertDuplicate
)

// JobRepository handles print job persistence. It is the single writer of
// the jobs table; identity uniqueness is enforced by the unique index on
// job_id, which also serializes racing inserts for one identity.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// FindByJobID retrieves a job by its stable identity.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: stable job identity.
// Returns:
//   - *domain.PrintJob: job record if found.
//   - error: domain.ErrNotFound when absent, *domain.PersistenceError otherwise.
func (r *JobRepository) FindByJobID(ctx context.Context, jobID string) (*domain.PrintJob, error) {
	var job domain.PrintJob
	if err := r.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.PersistenceError{Op: "find", Err: err}
	}
	return &job, nil
}

// Insert persists a new job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist; ID is populated on creation.
// Returns:
//   - InsertResult: InsertCreated, InsertDuplicate on a unique-index
//     collision for the identity, or InsertFailed.
//   - error: *domain.PersistenceError, non-nil only with InsertFailed.
func (r *JobRepository) Insert(ctx context.Context, job *domain.PrintJob) (InsertResult, error) {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return InsertDuplicate, nil
		}
		return InsertFailed, &domain.PersistenceError{Op: "insert", Err: err}
	}
	return InsertCreated, nil
}

// Finish transitions a job to its terminal FINISH state, setting the end
// time, computed duration, and the final audit payload in one atomic
// update.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: stable job identity.
//   - endTime: observed finish time.
//   - durationMinutes: elapsed minutes since start; nil leaves it unset.
//   - rawPayload: final raw message payload for audit.
// Returns:
//   - error: domain.ErrNotFound when no record matches,
//     *domain.PersistenceError on a store failure.
func (r *JobRepository) Finish(ctx context.Context, jobID string, endTime time.Time, durationMinutes *float64, rawPayload string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.PrintJob{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":           domain.JobStatusFinish,
			"end_time":         endTime,
			"duration_minutes": durationMinutes,
			"raw_payload":      rawPayload,
		})
	if res.Error != nil {
		return &domain.PersistenceError{Op: "finish", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FinishedHighWaterMark returns the largest row id among finished jobs.
// This is the sole signal the downstream poller consumes: a strictly
// increasing id means new finished work exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: MAX(id) over FINISH rows, 0 when there are none.
//   - error: *domain.PersistenceError on a store failure.
func (r *JobRepository) FinishedHighWaterMark(ctx context.Context) (int64, error) {
	var mark int64
	if err := r.db.WithContext(ctx).
		Model(&domain.PrintJob{}).
		Where("status = ?", domain.JobStatusFinish).
		Select("COALESCE(MAX(id), 0)").
		Scan(&mark).Error; err != nil {
		return 0, &domain.PersistenceError{Op: "high water mark", Err: err}
	}
	return mark, nil
}

// GetByRowID retrieves a job by its numeric row id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: auto-increment row id.
// Returns:
//   - *domain.PrintJob: job record if found.
//   - error: domain.ErrNotFound when absent, *domain.PersistenceError otherwise.
func (r *JobRepository) GetByRowID(ctx context.Context, id int64) (*domain.PrintJob, error) {
	var job domain.PrintJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.PersistenceError{Op: "get", Err: err}
	}
	return &job, nil
}

// ListRecent retrieves jobs ordered newest-first with pagination.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: job status to filter by; empty means all.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.PrintJob: matching job records.
//   - error: *domain.PersistenceError on a store failure.
func (r *JobRepository) ListRecent(ctx context.Context, status domain.JobStatus, limit, offset int) ([]domain.PrintJob, error) {
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var jobs []domain.PrintJob
	if err := query.
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list", Err: err}
	}
	return jobs, nil
}

// CountByStatus counts jobs by status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: job status to count.
// Returns:
//   - int64: number of matching records.
//   - error: *domain.PersistenceError on a store failure.
func (r *JobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.PrintJob{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, &domain.PersistenceError{Op: "count", Err: err}
	}
	return count, nil
}
