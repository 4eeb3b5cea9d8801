package identity

import (
	"testing"

	"github.com/colby/bambulog/internal/domain"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		name string
		snap domain.Snapshot
		want string
	}{
		{
			name: "cloud task id wins",
			snap: domain.Snapshot{TaskID: "12345", SubtaskName: "vase.gcode", GcodeStartTime: "1700000000"},
			want: "12345",
		},
		{
			name: "sentinel -1 falls through to timestamp",
			snap: domain.Snapshot{TaskID: "-1", SubtaskName: "vase.gcode", GcodeStartTime: "1700000000"},
			want: "vase.gcode_1700000000",
		},
		{
			name: "sentinel 0 falls through to timestamp",
			snap: domain.Snapshot{TaskID: "0", SubtaskName: "vase.gcode", GcodeStartTime: "1700000000"},
			want: "vase.gcode_1700000000",
		},
		{
			name: "fractional start time is truncated",
			snap: domain.Snapshot{SubtaskName: "lid.gcode", GcodeStartTime: "1700000000.99"},
			want: "lid.gcode_1700000000",
		},
		{
			name: "no task id and no start time",
			snap: domain.Snapshot{TaskID: "-1", SubtaskName: "calib.gcode"},
			want: "unknown_calib.gcode",
		},
		{
			name: "unparseable start time falls back to unknown",
			snap: domain.Snapshot{SubtaskName: "vase.gcode", GcodeStartTime: "soon"},
			want: "unknown_vase.gcode",
		},
		{
			name: "empty snapshot",
			snap: domain.Snapshot{},
			want: "unknown_",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(&tc.snap)
			if got != tc.want {
				t.Errorf("Resolve = %q, want %q", got, tc.want)
			}
		})
	}
}

// Resolve must be a pure function of the snapshot fields: the same inputs
// always yield the same identity across calls.
func TestResolveDeterministic(t *testing.T) {
	snap := &domain.Snapshot{TaskID: "-1", SubtaskName: "vase.gcode", GcodeStartTime: "1700000000.5"}
	first := Resolve(snap)
	for i := 0; i < 10; i++ {
		if got := Resolve(snap); got != first {
			t.Fatalf("Resolve not deterministic: %q != %q", got, first)
		}
	}
}
