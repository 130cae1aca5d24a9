package keyboard

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/botweaver/botweaver/internal/graph"
)

// Hints carries the layout knobs a node declares for its choice menu.
type Hints struct {
	Kind    graph.KeyboardKind
	OneTime bool
	Resize  bool
	// MultiSelect switches navigate/default buttons into toggle payloads
	// for the named node and appends a commit row.
	MultiSelect bool
	NodeAlias   string
	DoneText    string
	Chosen      map[string]struct{}
}

// AnyHideAfterClick reports whether the button list contains a button that
// must not have its menu reissued after selection.
func AnyHideAfterClick(buttons []graph.Button) bool {
	for _, b := range buttons {
		if b.HideAfterClick {
			return true
		}
	}
	return false
}

const checkmark = "✅ "

// Compiler turns button lists into telebot reply markup.
type Compiler struct {
	aliases *graph.AliasTable
	log     *slog.Logger
}

// NewCompiler returns a Compiler bound to a graph's alias table.
func NewCompiler(aliases *graph.AliasTable, log *slog.Logger) *Compiler {
	if log == nil {
		log = slog.Default()
	}
	return &Compiler{aliases: aliases, log: log}
}

// Compile renders buttons into markup per the node's keyboard kind. A nil
// markup means the node shows no menu.
func (c *Compiler) Compile(buttons []graph.Button, hints Hints) *telebot.ReplyMarkup {
	if hints.Kind == graph.KeyboardNone || len(buttons) == 0 {
		return nil
	}

	if hints.Kind == graph.KeyboardReply {
		return c.compileReply(buttons, hints)
	}

	return c.compileInline(buttons, hints)
}

func (c *Compiler) compileInline(buttons []graph.Button, hints Hints) *telebot.ReplyMarkup {
	cols := OptimalColumns(buttons)

	markup := &telebot.ReplyMarkup{}
	rows := make([][]telebot.InlineButton, 0, (len(buttons)+cols-1)/cols)
	row := make([]telebot.InlineButton, 0, cols)

	for _, b := range buttons {
		row = append(row, c.compileButton(b, hints))
		if len(row) == cols {
			rows = append(rows, row)
			row = make([]telebot.InlineButton, 0, cols)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if hints.MultiSelect {
		done := hints.DoneText
		if done == "" {
			done = "Done ✔️"
		}
		payload, err := EncodeCommit(hints.NodeAlias)
		if err != nil {
			c.log.Error("commit payload over limit", slog.String("alias", hints.NodeAlias), slog.Any("error", err))
			payload = NoopPayload
		}
		rows = append(rows, []telebot.InlineButton{{Text: done, Data: payload}})
	}

	markup.InlineKeyboard = rows
	return markup
}

// compileButton maps one editor button onto an inline button. Unresolvable
// navigation targets degrade to a no-op button carrying the original label,
// so the menu layout never shifts under the user.
func (c *Compiler) compileButton(b graph.Button, hints Hints) telebot.InlineButton {
	if b.Action == graph.ActionOpenURL {
		return telebot.InlineButton{Text: b.Text, URL: b.URL}
	}

	if hints.MultiSelect && b.Action != graph.ActionRunCommand {
		return c.compileToggle(b, hints)
	}

	switch b.Action {
	case graph.ActionNavigate, graph.ActionRunCommand, graph.ActionDefault:
		alias, ok := c.aliases.Alias(b.Target)
		if !ok {
			c.log.Warn("button target does not resolve, degrading to no-op",
				slog.String("button_id", b.ID), slog.String("target", b.Target))
			return telebot.InlineButton{Text: b.Text, Data: NoopPayload}
		}

		payload, err := EncodeNavigate(alias)
		if err != nil {
			c.log.Error("navigation payload over limit", slog.String("alias", alias), slog.Any("error", err))
			payload = NoopPayload
		}
		return telebot.InlineButton{Text: b.Text, Data: payload}
	case graph.ActionToggle:
		return c.compileToggle(b, hints)
	default:
		return telebot.InlineButton{Text: b.Text, Data: NoopPayload}
	}
}

func (c *Compiler) compileToggle(b graph.Button, hints Hints) telebot.InlineButton {
	payload, err := EncodeToggle(hints.NodeAlias, b.ID)
	if err != nil {
		c.log.Error("toggle payload over limit",
			slog.String("alias", hints.NodeAlias), slog.String("choice", b.ID), slog.Any("error", err))
		return telebot.InlineButton{Text: b.Text, Data: NoopPayload}
	}

	text := b.Text
	if _, chosen := hints.Chosen[b.ID]; chosen {
		text = checkmark + text
	}

	return telebot.InlineButton{Text: text, Data: payload}
}

func (c *Compiler) compileReply(buttons []graph.Button, hints Hints) *telebot.ReplyMarkup {
	cols := OptimalColumns(buttons)

	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  hints.Resize,
		OneTimeKeyboard: hints.OneTime,
	}

	rows := make([]telebot.Row, 0, (len(buttons)+cols-1)/cols)
	row := make([]telebot.Btn, 0, cols)
	for _, b := range buttons {
		row = append(row, markup.Text(b.Text))
		if len(row) == cols {
			rows = append(rows, row)
			row = make([]telebot.Btn, 0, cols)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	markup.Reply(rows...)
	return markup
}

// OptimalColumns picks a column count from button count and label width:
// long labels get a column to themselves, short ones pack two or three
// across.
func OptimalColumns(buttons []graph.Button) int {
	if len(buttons) <= 1 {
		return 1
	}

	longest := 0
	for _, b := range buttons {
		if n := len([]rune(b.Text)); n > longest {
			longest = n
		}
	}

	switch {
	case longest > 18:
		return 1
	case longest > 10 || len(buttons) <= 2:
		return 2
	default:
		return 3
	}
}
