package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kanban/internal/board"
	"kanban/internal/drag"
	"kanban/internal/gateway"
	"kanban/internal/i18n"
	"kanban/internal/logging"
	"kanban/internal/reconcile"
	"kanban/internal/tui"
)

func shellCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Line-mode board: list, add, move and delete cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), *configPath)
		},
	}
}

func runShell(ctx context.Context, configPath string) error {
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

	input, inputErr := newLineInput(filepath.Join(cfg.Storage.BaseDir, "shell.history"))
	if inputErr != nil {
		fmt.Fprintf(os.Stderr, "line editor unavailable, fallback to basic input: %v\n", inputErr)
	}
	defer input.Close()

	cwd, _ := os.Getwd()
	client := gateway.NewClient(cfg.Server)
	sh := newShell(ctx, shellOptions{
		Store:               board.NewStore(lanes),
		Gateway:             client,
		Locale:              i18n.Global(),
		Logger:              logger,
		Out:                 os.Stdout,
		ProjectDir:          cwd,
		RollbackFailedMoves: cfg.Board.RollbackFailedMoves,
	})
	sh.println(sh.locale.T("shell.welcome", client.BaseURL()))
	sh.reload()
	return sh.run(input)
}

type shellOptions struct {
	Store               *board.Store
	Gateway             gateway.Gateway
	Locale              *i18n.I18n
	Logger              logrus.FieldLogger
	Out                 io.Writer
	ProjectDir          string
	Width               int
	RollbackFailedMoves bool
}

// shell drives the same controller and drag session as the board, one
// command at a time. Every command waits for the calls it started, so the
// prompt always shows reconciled state.
type shell struct {
	store      *board.Store
	ctrl       *reconcile.Controller
	drag       *drag.Session
	runner     *reconcile.Runner
	locale     *i18n.I18n
	out        io.Writer
	projectDir string
	width      int
	failed     bool
}

func newShell(ctx context.Context, opts shellOptions) *shell {
	runner := reconcile.NewRunner(ctx)
	ctrl := reconcile.New(opts.Store, opts.Gateway, runner, reconcile.Options{
		RollbackFailedMoves: opts.RollbackFailedMoves,
		Logger:              opts.Logger,
	})
	locale := opts.Locale
	if locale == nil {
		locale = i18n.Global()
	}
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	return &shell{
		store:      opts.Store,
		ctrl:       ctrl,
		drag:       drag.NewSession(opts.Store, ctrl),
		runner:     runner,
		locale:     locale,
		out:        opts.Out,
		projectDir: opts.ProjectDir,
		width:      width,
	}
}

func (s *shell) run(in lineInput) error {
	for {
		line, err := in.ReadLine("kanban> ")
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				continue
			case errors.Is(err, io.EOF):
				return nil
			default:
				return fmt.Errorf("read input failed: %w", err)
			}
		}
		if exit := s.execute(line); exit {
			s.println(s.locale.T("shell.bye"))
			return nil
		}
	}
}

// sync waits for every dispatched call and reports failures. It returns
// false when any of them failed.
func (s *shell) sync() bool {
	s.failed = false
	s.runner.Flush(func(done reconcile.Completion) {
		if err := s.ctrl.Complete(done); err != nil {
			s.failed = true
			s.println(tui.FailureText(s.locale, err))
			return
		}
		if done.Op == reconcile.OpCreate && done.Err == nil {
			s.println(s.locale.T("shell.created", done.Task.ID))
		}
	})
	return !s.failed
}

func (s *shell) reload() bool {
	s.ctrl.Load()
	return s.sync()
}

func (s *shell) println(text string) {
	fmt.Fprintln(s.out, strings.TrimRight(text, "\n"))
}
