package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaos-io/rembg-tool/config"
	"github.com/chaos-io/rembg-tool/rembg"
	"github.com/chaos-io/rembg-tool/tool"
)

// app 命令之间共享的依赖，在 PersistentPreRunE 中初始化
type app struct {
	configPath string
	backend    string

	cfg      *config.Config
	remover  rembg.Remover
	registry *tool.Registry
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Backend = a.backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	remover, err := rembg.New(cfg)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.remover = remover
	a.registry = tool.NewRegistry(tool.NewRemoveBackgroundTool(remover, cfg.MaxInputSize, cfg.Timeout()))
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "rembg-tool",
		Short:             "Remove image backgrounds and trim transparent borders",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (JSON)")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "override backend: none | comfyui | rembg")

	root.AddCommand(
		newRemoveCmd(a),
		newBatchCmd(a),
		newDescribeCmd(a),
		newServeCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
