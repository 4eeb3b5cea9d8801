package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// GcodeState is the printer-reported state of the current gcode program.
// The printer emits more states than we act on; anything other than
// GcodeStateRunning or GcodeStateFinish is treated as unknown.
type GcodeState string

const (
	GcodeStateRunning GcodeState = "RUNNING"
	GcodeStateFinish  GcodeState = "FINISH"
	GcodeStateUnknown GcodeState = "UNKNOWN"
)

// FlexString is a string sourced from an untrusted JSON payload that some
// firmware versions emit as a number instead. It unmarshals from either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
// Parameters:
//   - data: raw JSON value, expected string, number, or null.
// Returns:
//   - error: non-nil if the value is neither.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = FlexString(num.String())
	return nil
}

// Float parses the value as a float.
// Parameters: none.
// Returns:
//   - float64: parsed value.
//   - bool: false when the value is empty or not numeric.
func (s FlexString) Float() (float64, bool) {
	trimmed := strings.TrimSpace(string(s))
	if trimmed == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsSet reports whether the field was present and non-empty in the payload.
func (s FlexString) IsSet() bool {
	return strings.TrimSpace(string(s)) != ""
}

// Snapshot is one decoded status report extracted from a raw printer
// message. Every field comes from the untrusted device payload and is
// optional except Raw, which always preserves the original bytes for audit.
type Snapshot struct {
	State          GcodeState
	SubtaskName    string
	TaskID         FlexString
	GcodeStartTime FlexString
	Raw            []byte
}

// StartTimeEpoch returns the printer-local gcode start time as epoch
// seconds, truncated to the whole second.
// Parameters: none.
// Returns:
//   - int64: epoch seconds.
//   - bool: false when the timestamp is absent or unparseable.
func (s *Snapshot) StartTimeEpoch() (int64, bool) {
	f, ok := s.GcodeStartTime.Float()
	if !ok {
		return 0, false
	}
	return int64(f), true
}
