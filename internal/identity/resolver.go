// Package identity derives a stable job identity from a snapshot so that
// the many duplicate reports the printer emits for one physical print all
// correlate to a single record.
package identity

import (
	"fmt"

	"github.com/colby/bambulog/internal/domain"
)

// Sentinel task id values the printer reports when no cloud task is bound
// (LAN-mode prints, SD-card reprints).
var sentinelTaskIDs = map[string]struct{}{
	"-1": {},
	"0":  {},
}

// Resolve derives the job identity for a snapshot. Total over any
// snapshot; precedence, first match wins:
//
//  1. Cloud task id, when set and not a sentinel.
//  2. "{subtask_name}_{start}" with the gcode start time truncated to whole
//     epoch seconds. Two different files started in the same second still
//     collide on the timestamp alone, hence the filename prefix; the
//     residual same-name-same-second collision is accepted.
//  3. "unknown_{subtask_name}". Unsafe last resort: every untimed, unnamed
//     job shares one identity.
//
// Parameters:
//   - snap: decoded snapshot.
//
// Returns:
//   - string: stable job identity.
func Resolve(snap *domain.Snapshot) string {
	if snap.TaskID.IsSet() {
		if _, sentinel := sentinelTaskIDs[string(snap.TaskID)]; !sentinel {
			return string(snap.TaskID)
		}
	}
	if epoch, ok := snap.StartTimeEpoch(); ok {
		return fmt.Sprintf("%s_%d", snap.SubtaskName, epoch)
	}
	return fmt.Sprintf("unknown_%s", snap.SubtaskName)
}
