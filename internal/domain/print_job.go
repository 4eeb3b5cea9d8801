package domain

import "time"

// JobStatus represents the lifecycle status of a tracked print job.
// Values include JobStatusRunning and JobStatusFinish.
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusFinish  JobStatus = "FINISH"
)

// PrintJob represents one physical print job reconstructed from the
// printer's report stream. ID is the auto-increment row id exposed to the
// downstream poller as its high-water mark; JobID is the stable identity
// correlating duplicate reports to one job.
type PrintJob struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID           string     `gorm:"type:text;not null;uniqueIndex:idx_jobs_job_id" json:"job_id"`
	Filename        string     `gorm:"type:text" json:"filename"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty"`
	Status          JobStatus  `gorm:"type:text;index:idx_jobs_status" json:"status"`
	RawPayload      string     `gorm:"type:text" json:"raw_payload,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for PrintJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (PrintJob) TableName() string {
	return "jobs"
}

// Finished reports whether the job has reached its terminal status.
func (j *PrintJob) Finished() bool {
	return j.Status == JobStatusFinish
}
