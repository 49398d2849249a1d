package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"kanban/internal/board"
	"kanban/internal/gateway"
	"kanban/internal/i18n"
	"kanban/internal/logging"
	"kanban/internal/tui"
)

func boardCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive board (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd.Context(), *configPath)
		},
	}
}

func runBoard(ctx context.Context, configPath string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the board needs a terminal; use `kanban shell` for line mode")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lanes, err := cfg.LaneSet()
	if err != nil {
		return err
	}
	logger, closer, err := logging.NewFile(cfg.Log, cfg.LogFile())
	if err != nil {
		return err
	}
	defer closer.Close()

	client := gateway.NewClient(cfg.Server)
	logger.WithField("server", client.BaseURL()).Info("board opened")
	err = tui.Run(ctx, tui.Options{
		Store:               board.NewStore(lanes),
		Gateway:             client,
		ServerURL:           client.BaseURL(),
		Locale:              i18n.Global(),
		Logger:              logger,
		RollbackFailedMoves: cfg.Board.RollbackFailedMoves,
	})
	if err != nil {
		return fmt.Errorf("board: %w", err)
	}
	return nil
}
