package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/daemon"
	"github.com/user/nsmon/internal/util"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change nsmon settings.

A running daemon picks up changes within 10 seconds.

Examples:
  nsmon config init
  nsmon config show
  nsmon config get detection_method
  nsmon config set detection_method hybrid
  nsmon config set scan_interval 5`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the config file with every setting filled in",
	Long: `Write the config file with every known setting. Values already in
the file are kept; missing keys get their defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.Save(); err != nil {
			return err
		}
		util.Info("Config written to %s", configs.Path())
		fmt.Printf("%s %s\n", labelStyle.Render("Wrote:"), configs.Path())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := configs.Settings()
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println(titleStyle.Render("Settings"))
		for _, k := range keys {
			fmt.Printf("  %s %v\n", labelStyle.Render(fmt.Sprintf("%-24s", k)), valueStyle.Render(fmt.Sprint(settings[k])))
		}
		fmt.Printf("\n%s %s\n", labelStyle.Render("File:"), configs.Path())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:               "get KEY",
	Short:             "Print one setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		value, ok := configs.Settings()[strings.ToLower(args[0])]
		if !ok {
			return fmt.Errorf("unknown setting %q", args[0])
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:               "set KEY VALUE",
	Short:             "Change one setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		if err := configs.Set(key, args[1]); err != nil {
			return err
		}
		util.Info("Setting %s changed to %s", key, args[1])

		if key == "auto_start" {
			if err := daemon.SyncAutoStart(configs.Current().AutoStart); err != nil {
				if errors.Is(err, daemon.ErrAutoStartUnsupported) {
					fmt.Println("Note: auto start is only applied on Windows")
				} else {
					return fmt.Errorf("setting saved but auto start failed: %w", err)
				}
			}
		}

		fmt.Printf("%s = %s\n", key, args[1])
		if running, _ := daemon.CheckRunning(cfg.DataDir); running {
			fmt.Println("The running daemon will apply the change within 10 seconds")
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configs.Path())
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return util.SettingKeys(), cobra.ShellCompDirectiveNoFileComp
}
