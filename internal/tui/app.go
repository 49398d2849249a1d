package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"kanban/internal/board"
	"kanban/internal/drag"
	"kanban/internal/gateway"
	"kanban/internal/i18n"
	"kanban/internal/reconcile"
)

// mode 当前交互模式
// mode is what the keyboard is currently driving.
type mode int

const (
	modeBoard mode = iota
	modeInput
	modeConfirm
	modeDetail
)

type inputPurpose int

const (
	inputCreate inputPurpose = iota
	inputTitle
	inputContent
)

// --- Tea Messages ---

// completionMsg 持久化调用完成
// completionMsg carries a finished persistence call back to the event loop.
type completionMsg struct{ done reconcile.Completion }

// Options configures the board app.
type Options struct {
	Store               *board.Store
	Gateway             gateway.Gateway
	ServerURL           string
	Locale              *i18n.I18n
	Logger              logrus.FieldLogger
	RollbackFailedMoves bool
}

// App Bubble Tea 主 Model
// App is the main Bubble Tea model. The store, controller and drag session
// are only touched from Update, so they need no locking.
type App struct {
	// 布局 / Layout
	width  int
	height int

	// 看板状态 / Board state
	ctx   context.Context
	store *board.Store
	ctrl  *reconcile.Controller
	drag  *drag.Session
	queue *reconcile.Queue

	// 光标 / Cursor
	lane  int
	row   int
	hover *drag.Target

	// 输入 / Input
	mode    mode
	purpose inputPurpose
	editing string
	input   textinput.Model
	detail  viewport.Model

	// 状态 / Status
	loading   bool
	notice    string
	noticeErr bool
	serverURL string

	// 配置 / Config
	theme  Theme
	keys   KeyMap
	locale *i18n.I18n
}

// NewApp 创建 TUI 应用
// NewApp creates a new TUI application
func NewApp(ctx context.Context, opts Options) App {
	locale := opts.Locale
	if locale == nil {
		locale = i18n.Global()
	}
	queue := reconcile.NewQueue()
	ctrl := reconcile.New(opts.Store, opts.Gateway, queue, reconcile.Options{
		RollbackFailedMoves: opts.RollbackFailedMoves,
		Logger:              opts.Logger,
	})

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Cursor.SetMode(cursor.CursorStatic)

	return App{
		ctx:       ctx,
		store:     opts.Store,
		ctrl:      ctrl,
		drag:      drag.NewSession(opts.Store, ctrl),
		queue:     queue,
		input:     ti,
		loading:   true,
		serverURL: opts.ServerURL,
		theme:     DarkTheme(),
		keys:      DefaultKeyMap(),
		locale:    locale,
	}
}

func (a App) Init() tea.Cmd {
	a.ctrl.Load()
	return a.flush()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case completionMsg:
		if msg.done.Op == reconcile.OpLoad {
			a.loading = false
		}
		if err := a.ctrl.Complete(msg.done); err != nil {
			a.fail(err)
		} else if msg.done.Err == nil {
			a.succeed(msg.done.Op)
		}
		if id := a.drag.ActiveID(); id != "" {
			a.follow(id)
		}
		a.clamp()
		return a, a.flush()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.mode {
		case modeInput:
			return a.updateInput(msg)
		case modeConfirm:
			return a.updateConfirm(msg)
		case modeDetail:
			return a.updateDetail(msg)
		}
		if a.drag.State() != drag.Idle {
			return a.updateDrag(msg)
		}
		return a.updateBoard(msg)
	}

	if a.mode == modeInput {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Left):
		a.lane--
		a.clamp()
	case key.Matches(msg, a.keys.Right):
		a.lane++
		a.clamp()
	case key.Matches(msg, a.keys.Up):
		a.row--
		a.clamp()
	case key.Matches(msg, a.keys.Down):
		a.row++
		a.clamp()
	case key.Matches(msg, a.keys.New):
		a.openInput(inputCreate, "", "", a.locale.T("prompt.new_title"))
	case key.Matches(msg, a.keys.Edit):
		if t, ok := a.selected(); ok {
			a.openInput(inputTitle, t.ID, t.Title, a.locale.T("prompt.edit_title"))
		}
	case key.Matches(msg, a.keys.Describe):
		if t, ok := a.selected(); ok {
			a.openInput(inputContent, t.ID, t.ContentText(), a.locale.T("prompt.edit_content"))
		}
	case key.Matches(msg, a.keys.Delete):
		if t, ok := a.selected(); ok {
			a.mode = modeConfirm
			a.editing = t.ID
		}
	case key.Matches(msg, a.keys.Grab):
		t, ok := a.selected()
		if !ok {
			a.setNotice(a.locale.T("error.no_task"), true)
			break
		}
		if err := a.drag.Start(t.ID); err != nil {
			a.setNotice(err.Error(), true)
			break
		}
		a.hover = nil
		a.setNotice(a.locale.T("status.dragging", t.Title), false)
	case key.Matches(msg, a.keys.Open):
		if t, ok := a.selected(); ok {
			a.openDetail(t)
		}
	case key.Matches(msg, a.keys.Reload):
		a.loading = true
		a.ctrl.Load()
		return a, a.flush()
	}
	return a, nil
}

// updateDrag moves the carried card one step per key. Up and down hover
// the neighbouring card; left and right hover the adjacent lane.
func (a App) updateDrag(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := a.drag.ActiveID()
	status, row, ok := a.store.Locate(id)
	if !ok {
		_ = a.drag.Cancel()
		a.clamp()
		return a, nil
	}
	lanes := a.store.Lanes()

	var target *drag.Target
	switch {
	case key.Matches(msg, a.keys.Up):
		if row > 0 {
			target = drag.TaskTarget(a.store.Lane(status)[row-1].ID)
		}
	case key.Matches(msg, a.keys.Down):
		tasks := a.store.Lane(status)
		if row < len(tasks)-1 {
			target = drag.TaskTarget(tasks[row+1].ID)
		}
	case key.Matches(msg, a.keys.Left):
		if i := lanes.Index(status); i > 0 {
			target = drag.LaneTarget(lanes.IDs()[i-1])
		}
	case key.Matches(msg, a.keys.Right):
		if i := lanes.Index(status); i >= 0 && i < lanes.Len()-1 {
			target = drag.LaneTarget(lanes.IDs()[i+1])
		}
	case key.Matches(msg, a.keys.Open):
		drop := a.hover
		if drop == nil {
			drop = drag.TaskTarget(id)
		}
		a.hover = nil
		if err := a.drag.End(drop); err != nil {
			a.fail(err)
		} else if st, _, ok := a.store.Locate(id); ok {
			a.setNotice(a.locale.T("status.dropped", a.laneTitle(st)), false)
		}
		a.follow(id)
		a.clamp()
		return a, a.flush()
	case key.Matches(msg, a.keys.Cancel):
		a.hover = nil
		_ = a.drag.Cancel()
		a.setNotice(a.locale.T("status.cancelled"), false)
		a.follow(id)
		a.clamp()
		return a, nil
	}

	if target != nil {
		if err := a.drag.Over(*target); err != nil {
			a.hover = nil
			a.fail(err)
		} else {
			a.hover = target
		}
		a.follow(id)
		a.clamp()
	}
	return a, nil
}

func (a App) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.closeInput()
		return a, nil
	case tea.KeyEnter:
		value := a.input.Value()
		var err error
		switch a.purpose {
		case inputCreate:
			err = a.ctrl.Create(value, a.laneID())
		case inputTitle:
			err = a.ctrl.Edit(a.editing, board.Patch{Title: &value})
		case inputContent:
			err = a.ctrl.Edit(a.editing, board.Patch{Content: &value})
		}
		switch {
		case err == nil, errors.Is(err, reconcile.ErrNoChange):
			a.closeInput()
		case errors.Is(err, reconcile.ErrEmptyTitle):
			a.setNotice(a.locale.T("error.empty_title"), true)
			return a, nil
		default:
			a.closeInput()
			a.fail(err)
		}
		return a, a.flush()
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a App) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Confirm):
		a.mode = modeBoard
		id := a.editing
		a.editing = ""
		if err := a.ctrl.Delete(id); err != nil {
			a.fail(err)
		}
		a.clamp()
		return a, a.flush()
	case key.Matches(msg, a.keys.Deny):
		a.mode = modeBoard
		a.editing = ""
	}
	return a, nil
}

func (a App) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Cancel), key.Matches(msg, a.keys.Open), key.Matches(msg, a.keys.Quit):
		a.mode = modeBoard
		return a, nil
	}
	var cmd tea.Cmd
	a.detail, cmd = a.detail.Update(msg)
	return a, cmd
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	header := a.renderHeader(a.width)
	var body string
	if a.mode == modeDetail {
		body = a.detail.View()
	} else {
		body = a.renderBoard(a.bodyHeight())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, a.renderFooter(a.width), a.renderStatusBar(a.width))
}

// --- 内部方法 / Internal methods ---

// flush turns queued persistence calls into commands.
func (a App) flush() tea.Cmd {
	pending := a.queue.Drain()
	if len(pending) == 0 {
		return nil
	}
	ctx := a.ctx
	cmds := make([]tea.Cmd, 0, len(pending))
	for _, p := range pending {
		cmds = append(cmds, func() tea.Msg {
			return completionMsg{done: p.Run(ctx)}
		})
	}
	return tea.Batch(cmds...)
}

func (a *App) relayout() {
	a.input.Width = a.width - 4
	a.detail = viewport.New(a.width, a.bodyHeight())
}

func (a App) bodyHeight() int {
	h := a.height - 5
	if h < 5 {
		h = 5
	}
	return h
}

func (a *App) openInput(p inputPurpose, id, value, placeholder string) {
	a.mode = modeInput
	a.purpose = p
	a.editing = id
	a.input.Placeholder = placeholder
	a.input.SetValue(value)
	a.input.CursorEnd()
	a.input.Focus()
}

func (a *App) closeInput() {
	a.mode = modeBoard
	a.editing = ""
	a.input.Blur()
	a.input.SetValue("")
}

func (a *App) openDetail(t board.Task) {
	a.mode = modeDetail
	a.detail = viewport.New(a.width, a.bodyHeight())
	a.detail.SetContent(RenderMarkdown(TaskMarkdown(t, a.laneTitle(t.Status), a.locale), a.width-4))
}

func (a *App) setNotice(text string, isErr bool) {
	a.notice = text
	a.noticeErr = isErr
}

func (a *App) succeed(op reconcile.Op) {
	switch op {
	case reconcile.OpCreate:
		a.setNotice(a.locale.T("status.created"), false)
	case reconcile.OpUpdate:
		a.setNotice(a.locale.T("status.updated"), false)
	case reconcile.OpDelete:
		a.setNotice(a.locale.T("status.deleted"), false)
	}
}

// fail shows err in the status bar.
func (a *App) fail(err error) {
	a.setNotice(FailureText(a.locale, err), true)
}

// FailureText words a failure after the operation that failed.
func FailureText(locale *i18n.I18n, err error) string {
	msgKey := "error.update"
	var opErr *reconcile.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case reconcile.OpLoad:
			msgKey = "error.load"
		case reconcile.OpCreate:
			msgKey = "error.create"
		case reconcile.OpMove:
			msgKey = "error.move"
		case reconcile.OpDelete:
			msgKey = "error.delete"
		}
		err = opErr.Err
	}
	return locale.T(msgKey, err.Error())
}

func (a App) laneID() string {
	ids := a.store.Lanes().IDs()
	if a.lane < 0 || a.lane >= len(ids) {
		return ""
	}
	return ids[a.lane]
}

func (a App) laneTitle(id string) string {
	return a.locale.LaneTitle(id, a.store.Lanes().Title(id))
}

func (a App) selected() (board.Task, bool) {
	tasks := a.store.Lane(a.laneID())
	if a.row < 0 || a.row >= len(tasks) {
		return board.Task{}, false
	}
	return tasks[a.row], true
}

// follow moves the cursor onto id wherever it is now.
func (a *App) follow(id string) {
	status, row, ok := a.store.Locate(id)
	if !ok {
		return
	}
	a.lane = a.store.Lanes().Index(status)
	a.row = row
}

func (a *App) clamp() {
	n := a.store.Lanes().Len()
	if a.lane >= n {
		a.lane = n - 1
	}
	if a.lane < 0 {
		a.lane = 0
	}
	rows := len(a.store.Lane(a.laneID()))
	if a.row >= rows {
		a.row = rows - 1
	}
	if a.row < 0 {
		a.row = 0
	}
}

// --- 渲染方法 / Render methods ---

func (a App) renderHeader(width int) string {
	title := a.theme.TitleStyle.Render(" " + a.locale.T("app.title"))
	server := a.theme.MutedStyle.Render(fmt.Sprintf("%s: %s ", a.locale.T("status.server"), a.serverURL))
	gap := width - lipgloss.Width(title) - lipgloss.Width(server)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + server
}

func (a App) renderBoard(height int) string {
	ids := a.store.Lanes().IDs()
	if len(ids) == 0 {
		return ""
	}
	colWidth := a.width / len(ids)
	if colWidth < 16 {
		colWidth = 16
	}
	inner := colWidth - 4

	cols := make([]string, 0, len(ids))
	for i, id := range ids {
		tasks := a.store.Lane(id)
		header := fmt.Sprintf("%s (%d)", a.laneTitle(id), len(tasks))
		lines := []string{a.theme.LaneTitleStyle.Render(truncate(header, inner))}
		if len(tasks) == 0 {
			lines = append(lines, a.theme.MutedStyle.Render(truncate(a.locale.T("lane.empty"), inner)))
		}
		for r, t := range tasks {
			lines = append(lines, a.renderCard(t, inner, i == a.lane && r == a.row))
		}

		style := a.theme.LaneStyle.
			Width(colWidth - 2).
			Height(height - 2).
			MaxHeight(height)
		if i == a.lane {
			style = style.BorderForeground(a.theme.Primary)
		}
		cols = append(cols, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (a App) renderCard(t board.Task, width int, selected bool) string {
	carried := a.drag.IsActive(t.ID)
	style := a.theme.CardStyle
	switch {
	case carried:
		style = a.theme.CarriedCardStyle
	case selected:
		style = a.theme.SelectedCardStyle
	}
	textWidth := width - 4
	text := truncate(t.Title, textWidth)
	if sub := firstLine(t.ContentText()); sub != "" {
		text += "\n" + a.theme.MutedStyle.Render(truncate(sub, textWidth))
	}
	if carried {
		text += "\n" + a.theme.MutedStyle.Render("↕ "+a.locale.T("card.moving"))
	}
	return style.Width(width - 2).Render(text)
}

func (a App) renderFooter(width int) string {
	switch a.mode {
	case modeInput:
		return a.theme.InputStyle.Width(width).Render(a.input.View())
	case modeConfirm:
		title := a.editing
		if t, ok := a.store.Get(a.editing); ok {
			title = t.Title
		}
		return a.theme.DangerStyle.Render(a.locale.T("prompt.confirm_delete", title))
	}
	help := a.locale.T("help.board")
	if a.drag.State() != drag.Idle {
		help = a.locale.T("help.drag")
	}
	return a.theme.MutedStyle.Render(truncate(" "+help, width))
}

func (a App) renderStatusBar(width int) string {
	status := a.locale.T("status.ready")
	switch {
	case a.loading:
		status = a.locale.T("status.loading")
	case a.ctrl.InFlight() > 0:
		status = a.locale.T("status.syncing", a.ctrl.InFlight())
	}

	left := " " + status
	right := ""
	if a.notice != "" {
		right = a.notice + "  "
		if a.noticeErr {
			right = a.theme.ErrorStyle.Render(right)
		}
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return a.theme.StatusBarStyle.Width(width).Render(bar)
}

// Run 启动 Bubble Tea TUI
// Run starts the Bubble Tea TUI application
func Run(ctx context.Context, opts Options) error {
	app := NewApp(ctx, opts)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
