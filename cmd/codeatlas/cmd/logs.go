package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		file     string
		tail     int
		pathOnly bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show server logs",
		Long: `Show the server log file. With --tail the last N lines are printed;
with --path only the log file location is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pathOnly && file == "" {
				// Print where logs will land even before the first
				// write, creating the directory so tail -f works.
				if err := logging.EnsureLogDir(); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), logging.DefaultLogPath())
				return err
			}

			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}
			if pathOnly {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read log file: %w", err)
			}
			content := string(data)
			if tail > 0 {
				content = lastLines(content, tail)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), content)
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Log file to read instead of the default")
	cmd.Flags().IntVarP(&tail, "tail", "n", 0, "Show only the last N lines")
	cmd.Flags().BoolVar(&pathOnly, "path", false, "Print the log file path and exit")

	return cmd
}

// lastLines returns the final n lines of content, preserving the
// trailing newline if present.
func lastLines(content string, n int) string {
	trimmed := strings.TrimSuffix(content, "\n")
	if trimmed == "" {
		return content
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := strings.Join(lines, "\n")
	if strings.HasSuffix(content, "\n") {
		out += "\n"
	}
	return out
}
