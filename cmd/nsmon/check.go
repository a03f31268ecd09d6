package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/probes"
)

var checkMethod string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single detection check",
	Long: `Run one detection check and print which signals fired.

The exit status is 0 when safe and 2 when a remote session is detected.

Examples:
  nsmon check
  nsmon check --method hybrid`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkMethod, "method", "m", "",
		"Detection method (process, port, registry, hybrid; default from config)")
}

// errConnected makes `check` exit non-zero without printing an error.
type errConnected struct{}

func (errConnected) Error() string { return "remote session detected" }

func runCheck(cmd *cobra.Command, args []string) error {
	method := cfg.Method()
	if checkMethod != "" {
		m, err := model.ParseMethod(checkMethod)
		if err != nil {
			return err
		}
		method = m
	}

	engine := probes.NewEngine(nil, nil, nil)
	if method == model.MethodRegistry && !engine.Registry().Supported() {
		fmt.Println(labelStyle.Render("Registry detection is not supported on this platform; result is always SAFE"))
	}

	res := engine.Detect(context.Background(), probes.PlanForMethod(method, cfg))

	verdict := safeStyle.Render("SAFE")
	if res.Connected {
		verdict = alertStyle.Render("CONNECTED")
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Status:"), verdict)
	fmt.Printf("%s %s\n", labelStyle.Render("Method:"), valueStyle.Render(res.Method.String()))
	fmt.Printf("%s %s\n", labelStyle.Render("Check took:"), valueStyle.Render(res.Duration.String()))

	processes := "-"
	if len(res.Signals.Processes) > 0 {
		processes = strings.Join(res.Signals.Processes, ", ")
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Processes:"), valueStyle.Render(processes))
	fmt.Printf("%s %s\n", labelStyle.Render(fmt.Sprintf("Port %d:", cfg.Port)), valueStyle.Render(yesNo(res.Signals.Port)))
	fmt.Printf("%s %s\n", labelStyle.Render("Registry:"), valueStyle.Render(yesNo(res.Signals.Registry)))

	if res.Connected {
		cmd.SilenceErrors = true
		return errConnected{}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
