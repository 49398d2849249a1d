package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// Board
	"app.title":   "Kanban",
	"lane.todo":   "To do",
	"lane.doing":  "In progress",
	"lane.done":   "Done",
	"lane.empty":  "No cards",
	"lane.count":  "%d",
	"card.add":    "Add card",
	"card.moving": "moving",

	// Status bar
	"status.server":    "Server",
	"status.loading":   "Loading tasks...",
	"status.ready":     "Ready",
	"status.syncing":   "Syncing %d change(s)...",
	"status.dragging":  "Moving %q: ←↑↓→ pick a spot, enter drop, esc cancel",
	"status.cancelled": "Move cancelled",
	"status.dropped":   "Moved to %s",
	"status.created":   "Card added",
	"status.deleted":   "Card deleted",
	"status.updated":   "Card updated",

	// Prompts
	"prompt.new_title":      "Enter a title for this card...",
	"prompt.edit_title":     "Edit title",
	"prompt.edit_content":   "Edit description",
	"prompt.confirm_delete": "Delete %q? (y/n)",

	// Failures
	"error.load":        "Failed to load tasks: %s",
	"error.create":      "Create failed: %s",
	"error.update":      "Update failed: %s",
	"error.move":        "Move failed: %s",
	"error.delete":      "Delete failed: %s",
	"error.empty_title": "Title cannot be empty",
	"error.no_task":     "No card selected",

	// Detail view
	"detail.status":     "Status",
	"detail.position":   "Position",
	"detail.no_content": "_No description._",

	// Help
	"help.board": "←→ lane  ↑↓ card  n new  e edit  d delete  space move  enter details  r reload  q quit",
	"help.drag":  "←→ lane  ↑↓ position  enter drop  esc cancel",

	// Shell
	"shell.welcome": "kanban shell, server %s. Type help for commands.",
	"shell.help": `Commands:
  ls [lane]                  list cards
  add <title> [@lane]        create a card
  mv <id> <lane|id>          move a card to a lane or onto another card
  edit <id> <title>          rename a card
  desc <id> <text>           set a card's description
  show <id>                  show a card
  rm <id>                    delete a card
  reload                     reload from the server
  lang <en|zh-CN>            switch language
  help                       this text
  exit                       leave`,
	"shell.unknown":  "Unknown command: %s",
	"shell.usage":    "Usage: %s",
	"shell.no_task":  "No card %s",
	"shell.bad_lane": "No lane or card %s",
	"shell.created":  "Created %s",
	"shell.moved":    "Moved %s to %s",
	"shell.updated":  "Updated %s",
	"shell.deleted":  "Deleted %s",
	"shell.loaded":   "Loaded %d card(s)",
	"shell.lang":     "Language: %s",
	"shell.bye":      "Bye",
}
