package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulntor/exposure/cmd/exposure/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := commands.NewCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		commands.PrintError(cmd, err)
		stop()
		os.Exit(commands.ExitCode(err))
	}
}
