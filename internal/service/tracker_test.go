package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/colby/bambulog/internal/domain"
	"github.com/colby/bambulog/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestTracker(t *testing.T, checkInterval time.Duration) (*TrackerService, *repository.JobRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&domain.PrintJob{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	repo := repository.NewJobRepository(db)
	tracker := NewTrackerService(repo, nil, &TrackerConfig{
		CheckInterval: checkInterval,
		StoreTimeout:  time.Second,
	})
	return tracker, repo
}

func report(state, subtask, taskID, startTime string) []byte {
	body := fmt.Sprintf(`{"print":{"gcode_state":%q,"subtask_name":%q`, state, subtask)
	if taskID != "" {
		body += fmt.Sprintf(`,"task_id":%q`, taskID)
	}
	if startTime != "" {
		body += fmt.Sprintf(`,"gcode_start_time":%q`, startTime)
	}
	return []byte(body + "}}")
}

func TestRunningCreatesRecord(t *testing.T) {
	tracker, repo := newTestTracker(t, 0)
	ctx := context.Background()
	now := time.Date(2023, 11, 15, 10, 0, 0, 0, time.UTC)

	msg := report("RUNNING", "vase.gcode", "12345", "1700000000")
	if err := tracker.HandleMessage(ctx, msg, now); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	job, err := repo.FindByJobID(ctx, "12345")
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if job.Status != domain.JobStatusRunning {
		t.Errorf("status = %q, want RUNNING", job.Status)
	}
	want := time.Unix(1700000000, 0).UTC()
	if !job.StartTime.Equal(want) {
		t.Errorf("start time = %v, want %v", job.StartTime, want)
	}
	if job.EndTime != nil || job.DurationMinutes != nil {
		t.Error("end time and duration should be unset while running")
	}
}

// Duplicate RUNNING reports are the normal case: the printer repeats its
// state many times per minute. Exactly one record must result, keeping the
// first report's start time.
func TestRunningIdempotent(t *testing.T) {
	tracker, repo := newTestTracker(t, 0)
	ctx := context.Background()
	t0 := time.Date(2023, 11, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		msg := report("RUNNING", "vase.gcode", "12345", "1700000000")
		if err := tracker.HandleMessage(ctx, msg, t0.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("HandleMessage %d returned error: %v", i, err)
		}
	}

	count, err := repo.CountByStatus(ctx, domain.JobStatusRunning)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("record count = %d, want 1", count)
	}
	job, err := repo.FindByJobID(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if !job.StartTime.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Errorf("start time must come from the first report, got %v", job.StartTime)
	}
}

func TestFinishComputesDuration(t *testing.T) {
	tracker, repo := newTestTracker(t, 0)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0).UTC()

	if err := tracker.HandleMessage(ctx, report("RUNNING", "vase.gcode", "12345", "1700000000"), t0); err != nil {
		t.Fatal(err)
	}
	finishAt := t0.Add(600 * time.Second)
	if err := tracker.HandleMessage(ctx, report("FINISH", "vase.gcode", "12345", "1700000000"), finishAt); err != nil {
		t.Fatal(err)
	}

	job, err := repo.FindByJobID(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobStatusFinish {
		t.Fatalf("status = %q, want FINISH", job.Status)
	}
	if job.EndTime == nil || !job.EndTime.Equal(finishAt) {
		t.Errorf("end time = %v, want %v", job.EndTime, finishAt)
	}
	if job.DurationMinutes == nil || *job.DurationMinutes != 10.0 {
		t.Errorf("duration = %v, want 10.0", job.DurationMinutes)
	}
}

// Only the first FINISH report sets the end time, duration, and audit
// payload; repeats while the record is already finished change nothing.
func TestFinishIdempotent(t *testing.T) {
	tracker, repo := newTestTracker(t, 0)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0).UTC()

	if err := tracker.HandleMessage(ctx, report("RUNNING", "vase.gcode", "12345", "1700000000"), t0); err != nil {
		t.Fatal(err)
	}
	firstFinish := t0.Add(10 * time.Minute)
	if err := tracker.HandleMessage(ctx, report("FINISH", "vase.gcode", "12345", "1700000000"), firstFinish); err != nil {
		t.Fatal(err)
	}

	jobAfterFirst, err := repo.FindByJobID(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	firstPayload := jobAfterFirst.RawPayload

	// The printer lingers in FINISH; reports keep arriving for hours.
	for i := 1; i <= 3; i++ {
		later := firstFinish.Add(time.Duration(i) * time.Hour)
		msg := []byte(fmt.Sprintf(`{"print":{"gcode_state":"FINISH","subtask_name":"vase.gcode","task_id":"12345","seq":%d}}`, i))
		if err := tracker.HandleMessage(ctx, msg, later); err != nil {
			t.Fatalf("duplicate FINISH %d returned error: %v", i, err)
		}
	}

	job, err := repo.FindByJobID(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if !job.EndTime.Equal(firstFinish) {
		t.Errorf("end time moved on duplicate FINISH: %v", job.EndTime)
	}
	if *job.DurationMinutes != 10.0 {
		t.Errorf("duration moved on duplicate FINISH: %v", *job.DurationMinutes)
	}
	if job.RawPayload != firstPayload {
		t.Error("audit payload must not be overwritten by duplicate FINISH reports")
	}
}

func TestOrphanFinish(t *testing.T) {
	tracker, repo := newTestTracker(t, 0)
	ctx := context.Background()
	now := time.Date(2023, 11, 15, 10, 0, 0, 0, time.UTC)

	// Sentinel task id, no start time: last-resort identity.
	msg := report("FINISH", "calib.gcode", "-1", "")
	if err := tracker.HandleMessage(ctx, msg, now); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	job, err := repo.FindByJobID(ctx, "unknown_calib.gcode")
	if err != nil {
		t.Fatalf("orphan record not created: %v", err)
	}
	if job.Status != domain.JobStatusFinish {
		t.Errorf("status = %q, want FINISH", job.Status)
	}
	if job.DurationMinutes != nil {
		t.Errorf("orphan duration = %v, want unset", *job.DurationMinutes)
	}
	if !job.StartTime.Equal(now) || job.EndTime == nil || !job.EndTime.Equal(now) {
		t.Errorf("orphan start/end should both be the receipt time")
	}
}

func TestUnknownStateIsNoOp(t *testing.T) {
	tracker, repo := newTestTracker(t, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, state := range []string{"PAUSE", "FAILED", "IDLE", ""} {
		if err := tracker.HandleMessage(ctx, report(state, "vase.gcode", "12345", "1700000000"), now); err != nil {
			t.Fatalf("state %q returned error: %v", state, err)
		}
	}

	if _, err := repo.FindByJobID(ctx, "12345"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("no record should exist for non-actionable states, got %v", err)
	}
}

func TestNoPrintSectionIsSilent(t *testing.T) {
	tracker, repo := newTestTracker(t, time.Minute)
	ctx := context.Background()
	t0 := time.Date(2023, 11, 15, 10, 0, 0, 0, time.UTC)

	// System messages carry no print section and must not consume the gate.
	if err := tracker.HandleMessage(ctx, []byte(`{"system":{"command":"get_access_code"}}`), t0); err != nil {
		t.Fatalf("system message returned error: %v", err)
	}
	if err := tracker.HandleMessage(ctx, report("RUNNING", "vase.gcode", "12345", ""), t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.FindByJobID(ctx, "12345"); err != nil {
		t.Errorf("status report behind a system message should still be admitted: %v", err)
	}
}

func TestMalformedPayloadReturnsDecodeError(t *testing.T) {
	tracker, _ := newTestTracker(t, 0)
	err := tracker.HandleMessage(context.Background(), []byte("garbage"), time.Now())
	var decodeErr *domain.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("expected *domain.DecodeError, got %v", err)
	}
}

func TestSamplingGateThrottlesPipeline(t *testing.T) {
	tracker, repo := newTestTracker(t, time.Minute)
	ctx := context.Background()
	t0 := time.Date(2023, 11, 15, 10, 0, 0, 0, time.UTC)

	// Admitted: creates the record.
	if err := tracker.HandleMessage(ctx, report("RUNNING", "vase.gcode", "12345", "1700000000"), t0); err != nil {
		t.Fatal(err)
	}
	// Throttled: a FINISH inside the window is dropped on the floor.
	if err := tracker.HandleMessage(ctx, report("FINISH", "vase.gcode", "12345", "1700000000"), t0.Add(30*time.Second)); err != nil {
		t.Fatal(err)
	}
	job, err := repo.FindByJobID(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobStatusRunning {
		t.Fatalf("throttled FINISH must not be applied, status = %q", job.Status)
	}

	// One interval later the next FINISH lands.
	if err := tracker.HandleMessage(ctx, report("FINISH", "vase.gcode", "12345", "1700000000"), t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	job, err = repo.FindByJobID(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobStatusFinish {
		t.Errorf("FINISH after the interval should be applied, status = %q", job.Status)
	}
}

func TestClockSkewClampsDuration(t *testing.T) {
	tracker, repo := newTestTracker(t, 0)
	ctx := context.Background()
	// Printer-local start time is ahead of our receipt clock.
	start := time.Now().Add(time.Hour).Unix()
	t0 := time.Now().UTC()

	if err := tracker.HandleMessage(ctx, report("RUNNING", "vase.gcode", "12345", fmt.Sprint(start)), t0); err != nil {
		t.Fatal(err)
	}
	if err := tracker.HandleMessage(ctx, report("FINISH", "vase.gcode", "12345", fmt.Sprint(start)), t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	job, err := repo.FindByJobID(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if job.DurationMinutes == nil || *job.DurationMinutes != 0 {
		t.Errorf("skewed duration should clamp to 0, got %v", job.DurationMinutes)
	}
}
