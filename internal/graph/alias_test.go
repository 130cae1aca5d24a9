package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeIdentifier(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{name: "lowercases", input: "AskName", limit: 40, expected: "askname"},
		{name: "replaces separators", input: "ask-name", limit: 40, expected: "ask_name"},
		{name: "collapses runs", input: "ask -- name", limit: 40, expected: "ask_name"},
		{name: "trims edge underscores", input: "--menu--", limit: 40, expected: "menu"},
		{name: "unicode replaced", input: "mény", limit: 40, expected: "m_ny"},
		{name: "truncates", input: strings.Repeat("a", 50), limit: 40, expected: strings.Repeat("a", 40)},
		{name: "no trailing underscore after cut", input: "abc_" + strings.Repeat("x", 50), limit: 4, expected: "abc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeIdentifier(tc.input, tc.limit))
		})
	}
}

func TestBuildAliasTable_Collisions(t *testing.T) {
	table, err := BuildAliasTable([]string{"ask-name", "ask name", "ask_name"})
	require.NoError(t, err)

	first, ok := table.Alias("ask-name")
	require.True(t, ok)
	assert.Equal(t, "ask_name", first)

	second, ok := table.Alias("ask name")
	require.True(t, ok)
	assert.Equal(t, "ask_name_2", second)

	third, ok := table.Alias("ask_name")
	require.True(t, ok)
	assert.Equal(t, "ask_name_3", third)

	// Round trips stay distinct.
	for _, id := range []string{"ask-name", "ask name", "ask_name"} {
		alias, _ := table.Alias(id)
		back, ok := table.Resolve(alias)
		require.True(t, ok)
		assert.Equal(t, id, back)
	}

	assert.Equal(t, 3, table.Len())
}

func TestBuildAliasTable_LongIDsStayWithinLimit(t *testing.T) {
	long := strings.Repeat("n", 60)
	table, err := BuildAliasTable([]string{long, long + "-b"})
	require.NoError(t, err)

	a, _ := table.Alias(long)
	b, _ := table.Alias(long + "-b")
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, len(a), maxAliasLen)
	assert.LessOrEqual(t, len(b), maxAliasLen)
	assert.True(t, strings.HasSuffix(b, "_2"))
}

func TestBuildAliasTable_EmptyAliasFails(t *testing.T) {
	_, err := BuildAliasTable([]string{"---"})
	assert.Error(t, err)
}
