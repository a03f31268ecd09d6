package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/daemon"
	"github.com/user/nsmon/internal/util"
	"github.com/user/nsmon/internal/web"
)

// daemonOutputFile captures stdout and stderr of a detached daemon.
const daemonOutputFile = "nsmon.out"

var (
	foreground   bool
	withWeb      bool
	startWebPort int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the nsmon daemon",
	Long:  "Start the nsmon daemon in the background to watch for remote control sessions.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false,
		"Run in foreground instead of daemonizing")
	startCmd.Flags().BoolVar(&withWeb, "with-web", false,
		"Also start the web dashboard server")
	startCmd.Flags().IntVar(&startWebPort, "web-port", 0,
		"Port for web server (when using --with-web, default from config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Check if already running
	running, pid := daemon.CheckRunning(cfg.DataDir)
	if running {
		fmt.Printf("Daemon is already running (PID %d)\n", pid)
		return nil
	}

	if startWebPort == 0 {
		startWebPort = cfg.WebPort
	}

	if cfg.AutoStart {
		if err := daemon.SyncAutoStart(true); err != nil {
			util.Debug("Auto start not registered: %v", err)
		}
	}

	if foreground {
		return runForeground()
	}

	return runDaemon()
}

func runForeground() error {
	fmt.Println("Starting nsmon in foreground mode...")

	d, err := daemon.New(configs)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Start web server if requested
	if withWeb {
		go func() {
			srv := web.NewServer(d.GetDB(), d.GetConfigStore(), startWebPort)
			fmt.Printf("Web dashboard: http://localhost:%d\n", startWebPort)
			if err := srv.Start(d.GetContext()); err != nil {
				util.Error("Web server error: %v", err)
			}
		}()
	}

	fmt.Println("nsmon daemon started. Press Ctrl+C to stop.")

	// Wait for daemon to finish
	d.Wait()

	return nil
}

func runDaemon() error {
	// Re-execute self in background
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Prepare arguments
	args := []string{"start", "--foreground", "--data-dir", cfg.DataDir}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}
	if withWeb {
		args = append(args, "--with-web", "--web-port", fmt.Sprintf("%d", startWebPort))
	}

	// Operator logs go to cfg.LogFile(); this only catches stray output.
	outPath := filepath.Join(cfg.DataDir, daemonOutputFile)
	outFile, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open daemon output file: %w", err)
	}
	defer outFile.Close()

	// Start background process
	procAttr := &os.ProcAttr{
		Dir:   cfg.DataDir,
		Env:   os.Environ(),
		Files: []*os.File{nil, outFile, outFile},
		Sys:   detachAttr(),
	}

	proc, err := os.StartProcess(executable, append([]string{executable}, args...), procAttr)
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	// Detach from parent
	if err := proc.Release(); err != nil {
		util.Warn("Failed to release process: %v", err)
	}

	fmt.Printf("nsmon daemon started (PID %d)\n", proc.Pid)
	fmt.Printf("Logs: %s\n", cfg.LogFile())
	if withWeb {
		fmt.Printf("Web dashboard: http://localhost:%d\n", startWebPort)
	}

	return nil
}
