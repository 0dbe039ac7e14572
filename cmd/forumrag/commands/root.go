// ABOUTME: Root command and global flags for the forumrag CLI
// ABOUTME: Registers every subcommand and validates mutually exclusive verbosity flags
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	configPath   string
	outputFormat string
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forumrag",
		Short: "Retrieval-augmented answers from scraped forum posts",
		Long: `forumrag indexes scraped forum posts and answers questions with them.

Posts and their comments are cleaned, embedded and stored in a Pinecone
index. Questions are answered by retrieving the closest passages and
asking a chat model to answer from them, falling back to the model's own
knowledge when nothing relevant is indexed. The evaluate command scores
answers against reference answers with ROUGE, BLEU, keyword recall and
context overlap.

Configuration comes from environment variables (a .env file is loaded
when present) and an optional YAML file passed with --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			switch outputFormat {
			case "auto", "table", "json":
			default:
				return fmt.Errorf("--format must be auto, table or json, got %q", outputFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors and suppress summaries")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table or json")

	cmd.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewEvaluateCmd(),
		NewHistoryCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command, cancelling it on SIGINT or SIGTERM
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
