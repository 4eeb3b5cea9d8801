// Package telemetry decodes raw printer report messages into typed
// snapshots. Decoding is a pure transform: no state, no side effects.
package telemetry

import (
	"encoding/json"

	"github.com/colby/bambulog/internal/domain"
)

// report mirrors the slice of the printer's report payload the tracker
// cares about. The device sends far more fields (temperatures, fans, AMS
// state); unknown fields are ignored for forward compatibility.
type report struct {
	Print *printSection `json:"print"`
}

type printSection struct {
	GcodeState     string            `json:"gcode_state"`
	SubtaskName    string            `json:"subtask_name"`
	TaskID         domain.FlexString `json:"task_id"`
	GcodeStartTime domain.FlexString `json:"gcode_start_time"`
}

// ParseReport decodes one raw message body into a Snapshot.
// Parameters:
//   - body: raw message bytes, expected UTF-8 JSON.
// Returns:
//   - *domain.Snapshot: decoded snapshot with the raw payload attached.
//   - error: *domain.DecodeError for malformed bytes, or
//     domain.ErrNoPrintSection when the payload has no print section.
func ParseReport(body []byte) (*domain.Snapshot, error) {
	var rep report
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	if rep.Print == nil {
		return nil, domain.ErrNoPrintSection
	}

	return &domain.Snapshot{
		State:          parseState(rep.Print.GcodeState),
		SubtaskName:    rep.Print.SubtaskName,
		TaskID:         rep.Print.TaskID,
		GcodeStartTime: rep.Print.GcodeStartTime,
		Raw:            body,
	}, nil
}

func parseState(raw string) domain.GcodeState {
	switch raw {
	case string(domain.GcodeStateRunning):
		return domain.GcodeStateRunning
	case string(domain.GcodeStateFinish):
		return domain.GcodeStateFinish
	default:
		return domain.GcodeStateUnknown
	}
}
