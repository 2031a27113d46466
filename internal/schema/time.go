package schema

import "time"

// Core Data stores timestamps as seconds since 2001-01-01 UTC; the offset is
// the gap to the Unix epoch.
const coreDataEpochOffset = 978307200

// Timestamp converts a wall-clock time to the host's Core Data encoding.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano())/float64(time.Second) - coreDataEpochOffset
}

// TimeFromTimestamp converts a stored Core Data timestamp back to wall-clock
// time.
func TimeFromTimestamp(ts float64) time.Time {
	unix := ts + coreDataEpochOffset
	sec := int64(unix)
	nsec := int64((unix - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
