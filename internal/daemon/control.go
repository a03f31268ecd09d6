package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/user/nsmon/internal/util"
)

// StatusFileName holds the daemon's own health snapshot. The detection
// status lives in util.StatusFileName.
const StatusFileName = "daemon.json"

// CheckRunning checks if the daemon is already running.
func CheckRunning(dataDir string) (bool, int) {
	pidFile := filepath.Join(dataDir, PIDFileName)

	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, 0
	}

	// Check if process exists
	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false, 0
	}

	return true, pid
}

// SendStop asks the running daemon to stop. Windows has no SIGTERM
// delivery, so the process is killed there.
func SendStop(dataDir string) error {
	running, pid := CheckRunning(dataDir)
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if runtime.GOOS == "windows" {
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("failed to kill process: %w", err)
		}
		os.Remove(filepath.Join(dataDir, PIDFileName))
		return nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}

	return nil
}

// StatusFile holds serialized daemon status.
type StatusFile struct {
	Running   bool        `json:"running"`
	PID       int         `json:"pid"`
	StartTime string      `json:"start_time"`
	Uptime    string      `json:"uptime"`
	Connected bool        `json:"connected"`
	Method    string      `json:"method"`
	Ticks     uint64      `json:"ticks"`
	Jobs      []JobStatus `json:"jobs"`
}

// WriteStatusFile writes the daemon status to a file.
func WriteStatusFile(dataDir string, status *DaemonStatus) error {
	statusFile := filepath.Join(dataDir, StatusFileName)

	sf := StatusFile{
		Running:   status.Running,
		PID:       status.PID,
		StartTime: status.StartTime.Format("2006-01-02 15:04:05"),
		Uptime:    status.Uptime.Round(time.Second).String(),
		Connected: status.Connected,
		Method:    status.Method,
		Ticks:     status.Ticks,
		Jobs:      status.Jobs,
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	return util.WriteFileAtomic(statusFile, data, 0644)
}

// ReadStatusFile reads the daemon status from a file.
func ReadStatusFile(dataDir string) (*StatusFile, error) {
	statusFile := filepath.Join(dataDir, StatusFileName)

	data, err := os.ReadFile(statusFile)
	if err != nil {
		return nil, err
	}

	var sf StatusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}

	return &sf, nil
}
