package models

import "time"

// LogFileRecord is a log file seen during a retention pass.
type LogFileRecord struct {
	FileName     string
	GroupKey     string
	LastModified time.Time
}

// PruneDecision pairs a log file with whether the retention pass keeps it.
type PruneDecision struct {
	Record   LogFileRecord
	Position int // 1-based position within its group, newest first
	Keep     bool
}

// PruneResult holds the result of a retention pass.
type PruneResult struct {
	Kept    []string
	Deleted []string
	Errors  []error
}
