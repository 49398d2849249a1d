package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"kanban/internal/board"
	"kanban/internal/i18n"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// TaskMarkdown 生成卡片详情的 markdown
// TaskMarkdown describes a card as markdown for the detail view.
func TaskMarkdown(t board.Task, laneTitle string, locale *i18n.I18n) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	if body := strings.TrimSpace(t.ContentText()); body != "" {
		b.WriteString(body)
	} else {
		b.WriteString(locale.T("detail.no_content"))
	}
	b.WriteString("\n\n---\n\n")
	fmt.Fprintf(&b, "- **%s**: %s\n", locale.T("detail.status"), laneTitle)
	fmt.Fprintf(&b, "- **%s**: %s\n", locale.T("detail.position"), strconv.FormatFloat(t.Position, 'f', -1, 64))
	fmt.Fprintf(&b, "- **ID**: `%s`\n", t.ID)
	return b.String()
}

// truncate 按显示宽度截断 / truncate cuts s to a display width.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// firstLine returns the first non-blank line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
