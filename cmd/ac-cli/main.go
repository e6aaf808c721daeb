package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/heysubinoy/pyazac/internal/node"
	"github.com/heysubinoy/pyazac/pkg/autocomplete"
	"github.com/heysubinoy/pyazac/pkg/client"
	"github.com/heysubinoy/pyazac/pkg/discovery"
)

var (
	storeAddr string
	mandiAddr string
	variant   string
	timeout   time.Duration
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "ac-cli",
	Short: "Prefix autocomplete over a pyaz store",
	Long: `ac-cli adds, removes and looks up autocomplete entries kept in a pyaz
store. Without --store the leader is discovered through mandi.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	mandiDefault := os.Getenv("MANDI_ADDR")
	if mandiDefault == "" {
		mandiDefault = "http://127.0.0.1:7000"
	}

	rootCmd.PersistentFlags().StringVar(&storeAddr, "store", "", "gRPC address of the store (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&mandiAddr, "mandi", mandiDefault, "mandi discovery service address")
	rootCmd.PersistentFlags().StringVar(&variant, "variant", "zset", "index variant: zset or recent")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "per-command timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(addCmd, removeCmd, findCmd, demoCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <key> <value>...",
	Short: "Add values to an index",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd.Context(), func(ctx context.Context, ix autocomplete.Index) error {
			for _, v := range args[1:] {
				if err := ix.Add(ctx, args[0], v); err != nil {
					return fmt.Errorf("add %q: %w", v, err)
				}
			}
			fmt.Printf("Added %d value(s) to %q\n", len(args)-1, args[0])
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <key> <value>...",
	Short: "Remove values from an index",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd.Context(), func(ctx context.Context, ix autocomplete.Index) error {
			for _, v := range args[1:] {
				if err := ix.Remove(ctx, args[0], v); err != nil {
					return fmt.Errorf("remove %q: %w", v, err)
				}
			}
			fmt.Printf("Removed %d value(s) from %q\n", len(args)-1, args[0])
			return nil
		})
	},
}

var findCmd = &cobra.Command{
	Use:   "find <key> <prefix>",
	Short: "List values starting with prefix",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd.Context(), func(ctx context.Context, ix autocomplete.Index) error {
			matches, err := ix.FindPrefix(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printMatches(args[1], matches)
			return nil
		})
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the wind/windy/winding walkthrough against key \"allen\"",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd.Context(), func(ctx context.Context, ix autocomplete.Index) error {
			const key = "allen"
			for _, v := range []string{"wind", "windy", "winding"} {
				if err := ix.Add(ctx, key, v); err != nil {
					return err
				}
			}
			matches, err := ix.FindPrefix(ctx, key, "wind")
			if err != nil {
				return err
			}
			printMatches("wind", matches)

			if err := ix.Remove(ctx, key, "winding"); err != nil {
				return err
			}
			matches, err = ix.FindPrefix(ctx, key, "wind")
			if err != nil {
				return err
			}
			printMatches("wind", matches)
			return nil
		})
	},
}

func printMatches(prefix string, matches []string) {
	fmt.Printf("%s* -> [%s]\n", prefix, strings.Join(matches, ", "))
}

// withIndex connects to the store, builds the selected index and runs fn
// under the command timeout.
func withIndex(parent context.Context, fn func(ctx context.Context, ix autocomplete.Index) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := node.NewLogger("ac-cli", level)

	addr := storeAddr
	if addr == "" {
		var err error
		addr, err = discovery.NewClient(mandiAddr).LeaderGRPCAddr(ctx)
		if err != nil {
			return fmt.Errorf("discover leader: %w", err)
		}
	}
	logger.Debug("connecting to store", "addr", addr)

	c, err := client.Dial(addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer c.Close()

	var ix autocomplete.Index
	switch variant {
	case "zset":
		ix = autocomplete.NewPrefixRangeIndex(c, autocomplete.WithLogger(logger))
	case "recent":
		ix = autocomplete.NewRecentIndex(c, autocomplete.WithLogger(logger))
	default:
		return fmt.Errorf("unknown variant %q (want zset or recent)", variant)
	}
	return fn(ctx, ix)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
