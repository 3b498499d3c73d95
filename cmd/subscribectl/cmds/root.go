package cmds

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/ltfawg/subscribe-api/internal/config"
)

var tracer = otel.Tracer("github.com/ltfawg/subscribe-api/subscribectl")

var rootCmd = &cobra.Command{
	Use:           "subscribectl",
	Short:         "Operator tools for the signup gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig is swapped in tests.
var loadConfig = config.GetConfig

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// run executes the root command with args, writing to out. Used by tests.
func run(ctx context.Context, out io.Writer, args ...string) error {
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
