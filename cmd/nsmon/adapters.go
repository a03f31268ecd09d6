package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/probes"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List network adapters",
	Long: `List network adapters and their addresses.

Use an adapter name with "nsmon config set network_adapter NAME" to limit
port detection to connections on that adapter.`,
	RunE: runAdapters,
}

func runAdapters(cmd *cobra.Command, args []string) error {
	adapters, err := probes.ListAdapters(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list adapters: %w", err)
	}

	fmt.Println(titleStyle.Render("Network Adapters"))
	for _, a := range adapters {
		name := a.Name
		if a.Name == cfg.NetworkAdapter {
			name += " *"
		}
		ipv4 := "-"
		if len(a.IPv4) > 0 {
			ipv4 = strings.Join(a.IPv4, ", ")
		}
		fmt.Printf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-24s", name)), valueStyle.Render(ipv4))
	}

	if cfg.NetworkAdapter == probes.AllAdapters {
		fmt.Printf("\nPort detection watches all adapters\n")
	} else {
		fmt.Printf("\nPort detection is limited to %s (*)\n", cfg.NetworkAdapter)
	}
	return nil
}
