//go:build !windows

package veracrypt

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fgeck/localbackup/internal/models"
)

// SystemLister reads volume labels from lsblk.
type SystemLister struct{}

// NewSystemLister returns the lister for the current platform.
func NewSystemLister() *SystemLister {
	return &SystemLister{}
}

// Volumes returns mounted block devices with their labels.
func (l *SystemLister) Volumes(ctx context.Context) ([]models.Volume, error) {
	output, err := exec.CommandContext(ctx, "lsblk", "-P", "-o", "LABEL,MOUNTPOINT").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run lsblk: %w", err)
	}
	return ParseLSBLK(string(output)), nil
}

// ParseLSBLK parses `lsblk -P -o LABEL,MOUNTPOINT` output. Unmounted devices
// are left out.
func ParseLSBLK(output string) []models.Volume {
	var volumes []models.Volume

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		data := parseKeyValueLine(line)
		if data["MOUNTPOINT"] == "" {
			continue
		}
		volumes = append(volumes, models.Volume{
			Path:  data["MOUNTPOINT"],
			Label: data["LABEL"],
		})
	}

	return volumes
}

// parseKeyValueLine splits KEY="value" pairs. Values may contain spaces.
func parseKeyValueLine(line string) map[string]string {
	result := make(map[string]string)
	for line != "" {
		eq := strings.Index(line, `="`)
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(line[:eq])
		rest := line[eq+2:]
		end := strings.Index(rest, `"`)
		if end < 0 {
			result[key] = rest
			break
		}
		result[key] = rest[:end]
		line = strings.TrimSpace(rest[end+1:])
	}
	return result
}
