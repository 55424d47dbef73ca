//go:build windows

package veracrypt

import (
	"context"

	"github.com/fgeck/localbackup/internal/models"
	"golang.org/x/sys/windows"
)

// SystemLister reads volume labels through the Win32 volume API.
type SystemLister struct{}

// NewSystemLister returns the lister for the current platform.
func NewSystemLister() *SystemLister {
	return &SystemLister{}
}

// Volumes returns every assigned drive letter with its volume label.
// Drives that cannot be queried (empty card readers, disconnected shares)
// are skipped.
func (l *SystemLister) Volumes(ctx context.Context) ([]models.Volume, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, err
	}

	var volumes []models.Volume
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if ctx.Err() != nil {
			return volumes, ctx.Err()
		}

		letter := string(rune('A'+i)) + ":"
		root, err := windows.UTF16PtrFromString(letter + `\`)
		if err != nil {
			continue
		}

		label := make([]uint16, windows.MAX_PATH+1)
		if err := windows.GetVolumeInformation(root, &label[0], uint32(len(label)),
			nil, nil, nil, nil, 0); err != nil {
			continue
		}

		volumes = append(volumes, models.Volume{
			Path:  letter,
			Label: windows.UTF16ToString(label),
		})
	}

	return volumes, nil
}
