package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BotBlake/tabbench/internal/hwinventory"
	"github.com/BotBlake/tabbench/internal/observability"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect hardware and available accelerators",
	Long: `Collect host hardware facts (OS, CPU, memory) and determine which
accelerator types this machine plausibly supports, without running any
benchmark probes.

Examples:
  tabbench detect
  tabbench detect --pretty`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().Bool("pretty", false, "pretty-print JSON output")
	detectCmd.Flags().Duration("timeout", 10*time.Second, "detection timeout")
}

func runDetect(c *cobra.Command, _ []string) error {
	timeout, _ := c.Flags().GetDuration("timeout")
	pretty, _ := c.Flags().GetBool("pretty")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	info, err := hwinventory.Collect(ctx, observability.LoggerFromContext(ctx))
	if err != nil {
		return fmt.Errorf("hardware detection failed: %w", err)
	}

	var output []byte
	if pretty {
		output, err = json.MarshalIndent(info, "", "  ")
	} else {
		output, err = json.Marshal(info)
	}
	if err != nil {
		return fmt.Errorf("marshaling detection result: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(output))
	return nil
}
