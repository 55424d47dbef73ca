package models

import "time"

// UsageResult holds the response of the usage recorder.
// An empty Response means there was nothing to record.
type UsageResult struct {
	Response string
	Error    error
}

// Medium is one physical backup medium tracked by the ledger.
type Medium struct {
	ID       string
	Type     MediaType
	FirstUse *time.Time
	LastUse  *time.Time
	UseCount int
	Active   bool
}

// MailResult holds the result of sending the completion email.
type MailResult struct {
	MessageSent bool
	Error       error
}
