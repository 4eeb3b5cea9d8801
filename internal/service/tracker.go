package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/colby/bambulog/internal/domain"
	"github.com/colby/bambulog/internal/gate"
	"github.com/colby/bambulog/internal/identity"
	"github.com/colby/bambulog/internal/logger"
	"github.com/colby/bambulog/internal/repository"
	"github.com/colby/bambulog/internal/telemetry"
)

// TrackerService is the job-lifecycle correlation engine. Each inbound
// message is decoded, rate-limited by the sampling gate, resolved to a
// stable job identity, and then applied to the job store through a small
// state machine: absent -> running -> finished, with finished terminal.
//
// The service never retries: a failed message is dropped and the next one
// gets a fresh attempt. Retry policy belongs to whoever drives the loop.
type TrackerService struct {
	repo         *repository.JobRepository
	gate         *gate.SamplingGate
	logger       *logger.Logger
	storeTimeout time.Duration
	traceFile    string
}

// TrackerConfig holds configuration for the tracker service
type TrackerConfig struct {
	// CheckInterval is the sampling gate period.
	CheckInterval time.Duration
	// StoreTimeout bounds each store read or write.
	StoreTimeout time.Duration
	// TraceFile receives a dump of the last admitted payload; empty disables it.
	TraceFile string
}

// NewTrackerService creates a new tracker service
func NewTrackerService(repo *repository.JobRepository, log *logger.Logger, cfg *TrackerConfig) *TrackerService {
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &TrackerService{
		repo:         repo,
		gate:         gate.New(cfg.CheckInterval),
		logger:       log,
		storeTimeout: storeTimeout,
		traceFile:    cfg.TraceFile,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *TrackerService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// HandleMessage processes one raw report message observed at now.
// Parameters:
//   - ctx: context for cancellation; store access gets a bounded timeout
//     derived from it.
//   - payload: raw message bytes.
//   - now: receipt time of the message.
// Returns:
//   - error: *domain.DecodeError for malformed bytes or
//     *domain.PersistenceError for store failures. Never returned for
//     messages with no print section, throttled messages, or duplicates;
//     those are deliberate no-ops.
func (s *TrackerService) HandleMessage(ctx context.Context, payload []byte, now time.Time) error {
	snap, err := telemetry.ParseReport(payload)
	if err != nil {
		if errors.Is(err, domain.ErrNoPrintSection) {
			// Nothing actionable in this message; the gate is left alone so
			// a status report right behind it can still be admitted.
			return nil
		}
		return err
	}

	if !s.gate.ShouldAdmit(now) {
		return nil
	}

	s.dumpTrace(ctx, payload)

	jobID := identity.Resolve(snap)
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:    jobID,
		logger.FieldFilename: snap.SubtaskName,
		logger.FieldState:    string(snap.State),
	})

	switch snap.State {
	case domain.GcodeStateRunning:
		return s.handleStart(ctx, snap, jobID, now)
	case domain.GcodeStateFinish:
		return s.handleFinish(ctx, snap, jobID, now)
	default:
		logger.CtxDebug(ctx, "Ignoring report in state %q", snap.State)
		return nil
	}
}

// handleStart creates the RUNNING record for a new job. Duplicate RUNNING
// reports are expected many times per print and collapse into a no-op via
// the store's unique identity index.
func (s *TrackerService) handleStart(ctx context.Context, snap *domain.Snapshot, jobID string, now time.Time) error {
	start := now.UTC()
	if epoch, ok := snap.StartTimeEpoch(); ok {
		start = time.Unix(epoch, 0).UTC()
	}

	job := &domain.PrintJob{
		JobID:      jobID,
		Filename:   snap.SubtaskName,
		StartTime:  start,
		Status:     domain.JobStatusRunning,
		RawPayload: string(snap.Raw),
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	res, err := s.repo.Insert(sctx, job)
	if err != nil {
		return err
	}
	if res == repository.InsertCreated {
		logger.CtxInfo(ctx, "PRINT STARTED: %s", snap.SubtaskName)
	} else {
		logger.CtxDebug(ctx, "Job already tracked")
	}
	return nil
}

// handleFinish drives the running -> finished transition. The end time and
// duration come from the first FINISH report only; once a record is
// finished, later FINISH reports are no-ops and the stored audit payload
// is left untouched.
func (s *TrackerService) handleFinish(ctx context.Context, snap *domain.Snapshot, jobID string, now time.Time) error {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	existing, err := s.repo.FindByJobID(sctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.insertOrphan(ctx, snap, jobID, now)
	}
	if err != nil {
		return err
	}

	if existing.Finished() {
		logger.CtxDebug(ctx, "Job already finished")
		return nil
	}

	end := now.UTC()
	duration := end.Sub(existing.StartTime).Minutes()
	if duration < 0 {
		// Printer-local start ahead of our receipt clock.
		logger.CtxWarn(ctx, "Negative duration from clock skew, clamping to 0")
		duration = 0
	}

	uctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	err = s.repo.Finish(uctx, jobID, end, &duration, string(snap.Raw))
	if errors.Is(err, domain.ErrNotFound) {
		logger.CtxWarn(ctx, "Job vanished before finish update, recreating")
		return s.insertOrphan(ctx, snap, jobID, now)
	}
	if err != nil {
		return err
	}

	s.log(ctx).
		WithField(logger.FieldDurationMin, duration).
		Infof("PRINT FINISHED: %s (%.1f min)", snap.SubtaskName, duration)
	return nil
}

// insertOrphan records a FINISH observation whose start event was missed,
// typically because the tracker was down or the gate dropped it. The record
// is terminal immediately: start = end = receipt time, duration unset.
func (s *TrackerService) insertOrphan(ctx context.Context, snap *domain.Snapshot, jobID string, now time.Time) error {
	end := now.UTC()
	job := &domain.PrintJob{
		JobID:      jobID,
		Filename:   snap.SubtaskName,
		StartTime:  end,
		EndTime:    &end,
		Status:     domain.JobStatusFinish,
		RawPayload: string(snap.Raw),
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	res, err := s.repo.Insert(sctx, job)
	if err != nil {
		return err
	}
	if res == repository.InsertDuplicate {
		// Lost the race to another writer for the same identity.
		logger.CtxDebug(ctx, "Orphan insert collided with existing record")
		return nil
	}
	logger.CtxWarn(ctx, "ORPHAN FINISHED: %s (start event was missed)", snap.SubtaskName)
	return nil
}

// dumpTrace rewrites the trace file with the last admitted payload. Purely
// diagnostic; failures never affect the pipeline.
func (s *TrackerService) dumpTrace(ctx context.Context, payload []byte) {
	if s.traceFile == "" {
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "    "); err != nil {
		return
	}
	if err := os.WriteFile(s.traceFile, pretty.Bytes(), 0644); err != nil {
		logger.CtxDebug(ctx, "Failed to write trace file: %v", err)
	}
}
