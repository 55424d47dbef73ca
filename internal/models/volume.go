package models

import "time"

// VolumeConfig holds what the mounter needs to attach an encrypted volume.
type VolumeConfig struct {
	VolumeName   string
	Password     string
	Device       string
	PollAttempts int
	PollInterval time.Duration
}

// Volume is one entry of the system's logical disk enumeration.
type Volume struct {
	Path  string // drive letter on Windows ("E:"), mount point elsewhere
	Label string
}

// MountResult holds the result of a mount operation.
// An empty DriveLetter means the volume label never showed up.
type MountResult struct {
	DriveLetter string
	Attempts    int
	CommandRun  bool
	Error       error
}

// Mounted reports whether a drive letter was resolved.
func (r *MountResult) Mounted() bool {
	return r != nil && r.DriveLetter != ""
}

// UnmountResult holds the result of an unmount operation.
type UnmountResult struct {
	CommandRun bool
	Output     string
	Error      error
}
