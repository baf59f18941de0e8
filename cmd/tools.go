package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolrelay/toolrelay/internal/client"
	"github.com/toolrelay/toolrelay/internal/protocol"
)

var toolsTimeout time.Duration

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and run tools on a running gateway",
}

func init() {
	toolsCmd.PersistentFlags().DurationVarP(&toolsTimeout, "timeout", "t", 30*time.Second, "Request timeout")
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsExecCmd)
}

func dialGateway() (*client.Client, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), toolsTimeout)
	c, err := client.Dial(ctx, endpoint(cfg))
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return c, ctx, cancel, nil
}

// ---- list ------------------------------------------------------------------

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	RunE: func(_ *cobra.Command, _ []string) error {
		c, ctx, cancel, err := dialGateway()
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		resp, err := c.Discover(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s %s\n\n", logo, resp.Server.Name, resp.Server.Version)
		if len(resp.Tools) == 0 {
			fmt.Println("No tools registered.")
			return nil
		}
		fmt.Printf("%-20s %-12s %s\n", "Name", "Provider", "Description")
		fmt.Println(strings.Repeat("-", 72))
		for _, t := range resp.Tools {
			provider := "builtin"
			if t.Provider != "" {
				provider = truncStr(t.Provider, 11)
			}
			fmt.Printf("%-20s %-12s %s\n", truncStr(t.Name, 19), provider, truncStr(t.Description, 40))
		}
		return nil
	},
}

// ---- exec ------------------------------------------------------------------

var (
	toolsExecArgs   string
	toolsExecStatus bool
)

var toolsExecCmd = &cobra.Command{
	Use:   "exec <tool>",
	Short: "Execute a tool and print its result",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var toolArgs map[string]any
		if toolsExecArgs != "" {
			if err := json.Unmarshal([]byte(toolsExecArgs), &toolArgs); err != nil {
				return fmt.Errorf("--args must be a JSON object: %w", err)
			}
		}

		c, ctx, cancel, err := dialGateway()
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		var onStatus client.StatusFunc
		if toolsExecStatus {
			onStatus = func(st protocol.ExecutionStatus) {
				fmt.Printf("[%s] %s\n", st.Timestamp.Format(time.RFC3339), st.Status)
			}
		}

		result, err := c.Execute(ctx, args[0], toolArgs, onStatus)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("format result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	toolsExecCmd.Flags().StringVarP(&toolsExecArgs, "args", "a", "", "Tool arguments as a JSON object")
	toolsExecCmd.Flags().BoolVarP(&toolsExecStatus, "status", "s", false, "Print status events")
}

// truncStr shortens s to at most n runes.
func truncStr(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
