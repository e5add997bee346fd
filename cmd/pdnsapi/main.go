// Точка входа pdnsapi — зеркало PowerDNS-Admin с локальным слоем владения зонами.
// Команды: serve (HTTP API), migrate, sync, cleanup.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/svdleer/pdnsapi-sub000/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pdnsapi",
		Short:        "Зеркало PowerDNS-Admin с локальным владением зонами",
		Version:      config.Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newCleanupCommand())

	return cmd
}
