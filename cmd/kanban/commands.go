package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"kanban/internal/board"
	"kanban/internal/config"
	"kanban/internal/drag"
	"kanban/internal/i18n"
	"kanban/internal/reconcile"
	"kanban/internal/tui"
)

var shellCommands = []string{"ls", "add", "mv", "edit", "desc", "show", "rm", "reload", "lang", "help", "exit"}

// execute runs one command line and reports whether the shell should exit.
func (s *shell) execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := parts[0], parts[1:]
	switch cmd {
	case "exit", "quit":
		return true
	case "help":
		s.println(s.locale.T("shell.help"))
	case "ls":
		s.list(args)
	case "add":
		s.add(args)
	case "mv":
		s.move(args)
	case "edit":
		s.edit(args, false)
	case "desc":
		s.edit(args, true)
	case "show":
		s.show(args)
	case "rm":
		s.remove(args)
	case "reload":
		if s.reload() {
			s.println(s.locale.T("shell.loaded", s.store.Len()))
		}
	case "lang":
		s.lang(args)
	default:
		s.println(s.locale.T("shell.unknown", cmd))
	}
	return false
}

func (s *shell) list(args []string) {
	lanes := s.store.Lanes()
	ids := lanes.IDs()
	if len(args) > 0 {
		if !lanes.Has(args[0]) {
			s.println(s.locale.T("shell.bad_lane", args[0]))
			return
		}
		ids = []string{args[0]}
	}
	for _, id := range ids {
		tasks := s.store.Lane(id)
		s.println(fmt.Sprintf("%s (%d)", s.laneTitle(id), len(tasks)))
		if len(tasks) == 0 {
			s.println("  " + s.locale.T("lane.empty"))
		}
		for _, t := range tasks {
			s.println(fmt.Sprintf("  %-8s %s", shortID(t.ID), runewidth.Truncate(t.Title, s.width-12, "…")))
		}
	}
}

// add <title...> [@lane]
func (s *shell) add(args []string) {
	status := ""
	if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "@") {
		status = strings.TrimPrefix(args[n-1], "@")
		args = args[:n-1]
		if !s.store.Lanes().Has(status) {
			s.println(s.locale.T("shell.bad_lane", status))
			return
		}
	}
	if err := s.ctrl.Create(strings.Join(args, " "), status); err != nil {
		s.localError(err)
		return
	}
	s.sync()
}

// mv <id> <lane|id> carries a card the same way a drag does.
func (s *shell) move(args []string) {
	if len(args) != 2 {
		s.println(s.locale.T("shell.usage", "mv <id> <lane|id>"))
		return
	}
	t, ok := s.resolve(args[0])
	if !ok {
		return
	}
	var target *drag.Target
	if s.store.Lanes().Has(args[1]) {
		target = drag.LaneTarget(args[1])
	} else if over, ok := s.resolve(args[1]); ok {
		target = drag.TaskTarget(over.ID)
	} else {
		return
	}

	if err := s.drag.Start(t.ID); err != nil {
		s.println(err.Error())
		return
	}
	if err := s.drag.Over(*target); err != nil {
		_ = s.drag.Cancel()
		s.println(err.Error())
		return
	}
	if err := s.drag.End(target); err != nil {
		s.println(tui.FailureText(s.locale, err))
		return
	}
	if s.sync() {
		moved, _ := s.store.Get(t.ID)
		s.println(s.locale.T("shell.moved", shortID(t.ID), s.laneTitle(moved.Status)))
	}
}

// edit <id> <text...> sets the title, or the description when content is set.
func (s *shell) edit(args []string, content bool) {
	if len(args) < 2 {
		if content {
			s.println(s.locale.T("shell.usage", "desc <id> <text>"))
		} else {
			s.println(s.locale.T("shell.usage", "edit <id> <title>"))
		}
		return
	}
	t, ok := s.resolve(args[0])
	if !ok {
		return
	}
	text := strings.Join(args[1:], " ")
	patch := board.Patch{Title: &text}
	if content {
		patch = board.Patch{Content: &text}
	}
	if err := s.ctrl.Edit(t.ID, patch); err != nil {
		s.localError(err)
		return
	}
	if s.sync() {
		s.println(s.locale.T("shell.updated", shortID(t.ID)))
	}
}

func (s *shell) show(args []string) {
	if len(args) != 1 {
		s.println(s.locale.T("shell.usage", "show <id>"))
		return
	}
	t, ok := s.resolve(args[0])
	if !ok {
		return
	}
	s.println(tui.RenderMarkdown(tui.TaskMarkdown(t, s.laneTitle(t.Status), s.locale), s.width))
}

func (s *shell) remove(args []string) {
	if len(args) != 1 {
		s.println(s.locale.T("shell.usage", "rm <id>"))
		return
	}
	t, ok := s.resolve(args[0])
	if !ok {
		return
	}
	if err := s.ctrl.Delete(t.ID); err != nil {
		s.localError(err)
		return
	}
	if s.sync() {
		s.println(s.locale.T("shell.deleted", shortID(t.ID)))
	}
}

func (s *shell) lang(args []string) {
	if len(args) != 1 {
		s.println(s.locale.T("shell.usage", "lang <en|zh-CN>"))
		return
	}
	i18n.Init(args[0])
	s.locale = i18n.Global()
	if s.projectDir != "" {
		if err := config.WriteUILocale(s.projectDir, s.locale.Locale()); err != nil {
			s.println(err.Error())
		}
	}
	s.println(s.locale.T("shell.lang", s.locale.Locale()))
}

// resolve finds a card by id or unique id prefix.
func (s *shell) resolve(ref string) (board.Task, bool) {
	if t, ok := s.store.Get(ref); ok {
		return t, true
	}
	var found []board.Task
	for _, t := range s.store.Tasks() {
		if strings.HasPrefix(t.ID, ref) {
			found = append(found, t)
		}
	}
	if len(found) != 1 {
		s.println(s.locale.T("shell.no_task", ref))
		return board.Task{}, false
	}
	return found[0], true
}

func (s *shell) localError(err error) {
	switch {
	case errors.Is(err, reconcile.ErrEmptyTitle):
		s.println(s.locale.T("error.empty_title"))
	case errors.Is(err, reconcile.ErrNoChange):
	default:
		s.println(err.Error())
	}
}

func (s *shell) laneTitle(id string) string {
	return s.locale.LaneTitle(id, s.store.Lanes().Title(id))
}

// shortID keeps listings narrow; resolve accepts any unique prefix.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
