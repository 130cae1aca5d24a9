package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Routing aliases ride inside Telegram callback payloads, which cap at 64
// bytes. Role prefixes ("ms:<alias>:<choice>", "msdone:<alias>") and choice
// ids share that budget, so aliases are held well under the cap.
const (
	PayloadLimitBytes = 64
	maxAliasLen       = 40
	maxChoiceIDLen    = 16
)

// AliasTable maps node ids to short routing aliases and back. It is built
// once during compilation with explicit collision handling, so two distinct
// node ids can never silently truncate to the same identifier.
type AliasTable struct {
	byID    map[string]string
	byAlias map[string]string
}

// BuildAliasTable derives a routing alias for every node id. Sanitized
// aliases that collide are disambiguated with a deterministic numeric suffix
// based on declaration order.
func BuildAliasTable(nodeIDs []string) (*AliasTable, error) {
	t := &AliasTable{
		byID:    make(map[string]string, len(nodeIDs)),
		byAlias: make(map[string]string, len(nodeIDs)),
	}

	for _, id := range nodeIDs {
		base := SanitizeIdentifier(id, maxAliasLen)
		if base == "" {
			return nil, fmt.Errorf("node id %q sanitizes to an empty alias", id)
		}

		alias := base
		for suffix := 2; ; suffix++ {
			if _, taken := t.byAlias[alias]; !taken {
				break
			}
			tag := "_" + strconv.Itoa(suffix)
			trimmed := base
			if len(trimmed)+len(tag) > maxAliasLen {
				trimmed = trimmed[:maxAliasLen-len(tag)]
			}
			alias = trimmed + tag
		}

		t.byID[id] = alias
		t.byAlias[alias] = id
	}

	return t, nil
}

// Alias returns the routing alias for a node id.
func (t *AliasTable) Alias(nodeID string) (string, bool) {
	alias, ok := t.byID[nodeID]
	return alias, ok
}

// Resolve returns the node id behind a routing alias.
func (t *AliasTable) Resolve(alias string) (string, bool) {
	id, ok := t.byAlias[alias]
	return id, ok
}

// Len reports how many nodes the table covers.
func (t *AliasTable) Len() int {
	return len(t.byID)
}

// SanitizeIdentifier lowercases the input, replaces every byte outside
// [a-z0-9_] with an underscore, collapses runs, and truncates from the right
// to limit bytes.
func SanitizeIdentifier(s string, limit int) string {
	var b strings.Builder
	b.Grow(len(s))

	prevUnderscore := false
	for _, r := range strings.ToLower(s) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !ok {
			if prevUnderscore {
				continue
			}
			b.WriteByte('_')
			prevUnderscore = true
			continue
		}
		b.WriteRune(r)
		prevUnderscore = false
	}

	out := strings.Trim(b.String(), "_")
	if len(out) > limit {
		out = strings.TrimRight(out[:limit], "_")
	}
	return out
}

// SanitizeChoiceID shortens a button id for use inside a toggle payload.
func SanitizeChoiceID(s string) string {
	return SanitizeIdentifier(s, maxChoiceIDLen)
}
