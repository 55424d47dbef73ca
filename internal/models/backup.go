package models

import "time"

// BackupOutcome classifies how the external backup job finished.
type BackupOutcome int

// Backup outcomes.
const (
	OutcomeSuccess BackupOutcome = iota
	OutcomeSuccessWithWarnings
	OutcomeFailed
)

// OutcomeFromExitCode maps a backup job exit status to an outcome.
func OutcomeFromExitCode(code int) BackupOutcome {
	switch code {
	case 0:
		return OutcomeSuccess
	case 1:
		return OutcomeSuccessWithWarnings
	default:
		return OutcomeFailed
	}
}

func (o BackupOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSuccessWithWarnings:
		return "success_with_warnings"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Succeeded reports whether the outcome allows usage to be recorded.
func (o BackupOutcome) Succeeded() bool {
	return o != OutcomeFailed
}

// BackupJobConfig describes the external batch job.
type BackupJobConfig struct {
	BatchFile string
	DriveEnv  string // environment variable carrying the mounted drive letter
}

// BackupResult holds the result of a backup job run.
type BackupResult struct {
	ExitCode int
	Outcome  BackupOutcome
	Duration time.Duration
	Error    error
}
