package keyboard

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botweaver/botweaver/internal/graph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCompiler(t *testing.T, nodeIDs ...string) *Compiler {
	t.Helper()
	aliases, err := graph.BuildAliasTable(nodeIDs)
	require.NoError(t, err)
	return NewCompiler(aliases, testLogger())
}

func TestCompile_NoneKindOrNoButtons(t *testing.T) {
	c := testCompiler(t, "menu")

	assert.Nil(t, c.Compile(nil, Hints{Kind: graph.KeyboardInline}))
	assert.Nil(t, c.Compile([]graph.Button{{ID: "b", Text: "Go", Target: "menu"}}, Hints{Kind: graph.KeyboardNone}))
}

func TestCompile_InlineNavigation(t *testing.T) {
	c := testCompiler(t, "profile", "settings")

	markup := c.Compile([]graph.Button{
		{ID: "b1", Text: "Profile", Action: graph.ActionNavigate, Target: "profile"},
		{ID: "b2", Text: "Settings", Action: graph.ActionDefault, Target: "settings"},
	}, Hints{Kind: graph.KeyboardInline})

	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, "profile", row[0].Data)
	assert.Equal(t, "settings", row[1].Data)
}

func TestCompile_DanglingTargetDegradesToNoop(t *testing.T) {
	c := testCompiler(t, "menu")

	markup := c.Compile([]graph.Button{
		{ID: "b1", Text: "Ghost", Action: graph.ActionNavigate, Target: "missing"},
	}, Hints{Kind: graph.KeyboardInline})

	require.NotNil(t, markup)
	btn := markup.InlineKeyboard[0][0]
	assert.Equal(t, "Ghost", btn.Text)
	assert.Equal(t, NoopPayload, btn.Data)
}

func TestCompile_URLButton(t *testing.T) {
	c := testCompiler(t, "menu")

	markup := c.Compile([]graph.Button{
		{ID: "b1", Text: "Docs", Action: graph.ActionOpenURL, URL: "https://example.com"},
	}, Hints{Kind: graph.KeyboardInline})

	btn := markup.InlineKeyboard[0][0]
	assert.Equal(t, "https://example.com", btn.URL)
	assert.Empty(t, btn.Data)
}

func TestCompile_MultiSelect(t *testing.T) {
	c := testCompiler(t, "interests")

	buttons := []graph.Button{
		{ID: "news", Text: "News", Action: graph.ActionToggle},
		{ID: "tech", Text: "Tech", Action: graph.ActionToggle},
	}

	markup := c.Compile(buttons, Hints{
		Kind:        graph.KeyboardInline,
		MultiSelect: true,
		NodeAlias:   "interests",
		DoneText:    "Finish",
		Chosen:      map[string]struct{}{"tech": {}},
	})

	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)

	choices := markup.InlineKeyboard[0]
	assert.Equal(t, "News", choices[0].Text)
	assert.Equal(t, "ms:interests:news", choices[0].Data)
	assert.Equal(t, "✅ Tech", choices[1].Text)
	assert.Equal(t, "ms:interests:tech", choices[1].Data)

	done := markup.InlineKeyboard[1][0]
	assert.Equal(t, "Finish", done.Text)
	assert.Equal(t, "msdone:interests", done.Data)
}

func TestCompile_MultiSelectDefaultDoneLabel(t *testing.T) {
	c := testCompiler(t, "interests")

	markup := c.Compile([]graph.Button{
		{ID: "news", Text: "News", Action: graph.ActionToggle},
	}, Hints{Kind: graph.KeyboardInline, MultiSelect: true, NodeAlias: "interests"})

	last := markup.InlineKeyboard[len(markup.InlineKeyboard)-1][0]
	assert.Equal(t, "Done ✔️", last.Text)
}

func TestCompile_MultiSelectConvertsDefaultButtons(t *testing.T) {
	c := testCompiler(t, "interests", "menu")

	markup := c.Compile([]graph.Button{
		{ID: "news", Text: "News", Action: graph.ActionDefault, Target: "menu"},
	}, Hints{Kind: graph.KeyboardInline, MultiSelect: true, NodeAlias: "interests"})

	assert.Equal(t, "ms:interests:news", markup.InlineKeyboard[0][0].Data)
}

func TestCompile_Reply(t *testing.T) {
	c := testCompiler(t, "profile")

	markup := c.Compile([]graph.Button{
		{ID: "b1", Text: "Profile", Target: "profile"},
		{ID: "b2", Text: "About", Target: "profile"},
	}, Hints{Kind: graph.KeyboardReply, Resize: true, OneTime: true})

	require.NotNil(t, markup)
	assert.True(t, markup.ResizeKeyboard)
	assert.True(t, markup.OneTimeKeyboard)
	require.Len(t, markup.ReplyKeyboard, 1)
	assert.Equal(t, "Profile", markup.ReplyKeyboard[0][0].Text)
}

func TestOptimalColumns(t *testing.T) {
	short := func(n int) []graph.Button {
		out := make([]graph.Button, n)
		for i := range out {
			out[i] = graph.Button{ID: "b", Text: "Go"}
		}
		return out
	}

	testCases := []struct {
		name     string
		buttons  []graph.Button
		expected int
	}{
		{name: "single button", buttons: short(1), expected: 1},
		{name: "two short buttons", buttons: short(2), expected: 2},
		{name: "many short buttons", buttons: short(6), expected: 3},
		{
			name: "medium labels",
			buttons: []graph.Button{
				{Text: "Notifications"}, {Text: "Language"}, {Text: "Privacy"},
			},
			expected: 2,
		},
		{
			name: "long label forces one column",
			buttons: []graph.Button{
				{Text: strings.Repeat("x", 19)}, {Text: "Ok"},
			},
			expected: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, OptimalColumns(tc.buttons))
		})
	}
}

func TestAnyHideAfterClick(t *testing.T) {
	assert.False(t, AnyHideAfterClick([]graph.Button{{ID: "a"}}))
	assert.True(t, AnyHideAfterClick([]graph.Button{{ID: "a"}, {ID: "b", HideAfterClick: true}}))
}
