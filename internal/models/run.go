package models

import "time"

// RunState is a step of the backup run.
type RunState string

// Run states in execution order.
const (
	StateValidating    RunState = "validating"
	StateMounting      RunState = "mounting"
	StateBackupRunning RunState = "backup"
	StateUnmounting    RunState = "unmounting"
	StateUpdating      RunState = "updating"
	StateNotifying     RunState = "notifying"
	StatePruning       RunState = "pruning"
	StateDone          RunState = "done"
	StateFailed        RunState = "failed"
)

// Process exit codes.
const (
	ExitSuccess    = 0
	ExitNoUpdate   = 1 // empty usage response or mail failure
	ExitBackupFail = 2 // validation, mount or backup failure
)

// RunResult summarises a backup run.
type RunResult struct {
	RunID         string
	ExitCode      int
	State         RunState
	FailedStep    RunState
	MediaType     MediaType
	DriveLetter   string
	Outcome       *BackupOutcome
	UsageResponse string
	MessageSent   bool
	LogsPruned    int
	StartTime     time.Time
	Duration      time.Duration
	Error         error
}
