package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/ltfawg/subscribe-api/cmd/subscribectl/cmds"
	"github.com/ltfawg/subscribe-api/internal/exiterr"
	"github.com/ltfawg/subscribe-api/internal/logger"
)

func runApp(ctx context.Context) int {
	err := cmds.Execute(ctx)
	if err != nil {
		logger.Logger.Error("error executing subcommands", "error", err)

		var ee exiterr.ExitError
		if errors.As(err, &ee) {
			return ee.Code
		}
		return exiterr.ExitErrored
	}

	return exiterr.ExitNormal
}

func main() {
	logger.InitSlog(slog.LevelInfo)

	os.Exit(runApp(context.Background()))
}
