package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/util"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

var (
	cfgFile  string
	dataDir  string
	logLevel string
	configs  *util.ConfigStore
	cfg      *util.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "nsmon",
	Short: "NetSupport remote control monitor",
	Long: `nsmon watches this machine for an active NetSupport remote control
session and tells you when someone is connected.

Detection methods:
- process:  known NetSupport client processes are running
- port:     an established connection on the NetSupport port (default 5405)
- registry: the NetSupport "Connected" registry flag (Windows only)
- hybrid:   any of the above

It runs as a background daemon and keeps a history of remote sessions
that can be browsed in the terminal, on the web dashboard, or exported as
a report.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	defer util.SyncLogger()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.nsmon/config.json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"data directory (default is $HOME/.nsmon)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error); overrides the config file")

	// Add subcommands
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(adaptersCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(versionCmd)

	// Add shell completion
	rootCmd.AddCommand(completionCmd)
}

func initConfig() {
	configs = util.NewConfigStore(dataDir, cfgFile)

	var warnings []string
	var err error
	cfg, warnings, err = configs.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	util.InitLogger(level, cfg.LogFile())

	for _, w := range warnings {
		util.Warn("%s", w)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nsmon version %s\n", version)
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for nsmon.

To load completions:

Bash:
  $ source <(nsmon completion bash)

Zsh:
  $ source <(nsmon completion zsh)

Fish:
  $ nsmon completion fish | source

PowerShell:
  PS> nsmon completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}
