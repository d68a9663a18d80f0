package chat

import (
	"fmt"
	"strings"
)

// AliasStore resolves a channel-scoped alias's first word to its expansion
// template. Templates may themselves start with another alias, which is
// why expansion must repeat and guard against cycles.
type AliasStore interface {
	Lookup(channel, firstWord string) (template string, ok bool)
}

// AliasCycleError reports a self-referential alias chain.
type AliasCycleError struct {
	Path []string
}

func (e *AliasCycleError) Error() string {
	return fmt.Sprintf("Recursion found in alias expansion: %s :(", strings.Join(e.Path, " -> "))
}

// ExpandAlias repeatedly rewrites message by looking up its first word in
// store, substituting the alias's template in place of the first word,
// until no further alias applies. A repeated first word within one
// expansion chain is reported as a cycle rather than looped forever.
func ExpandAlias(store AliasStore, channel, message string) (string, error) {
	seen := make(map[string]bool)
	path := make([]string, 0, 4)
	current := message

	for {
		first, rest := splitFirstWord(current)
		if first == "" {
			return current, nil
		}
		key := strings.ToLower(first)
		if seen[key] {
			return "", &AliasCycleError{Path: path}
		}

		template, ok := store.Lookup(channel, key)
		if !ok {
			return current, nil
		}
		seen[key] = true
		path = append(path, first)

		if rest == "" {
			current = template
		} else {
			current = template + " " + rest
		}
	}
}

// splitFirstWord splits s into its first whitespace-delimited word and the
// remainder, trimmed of leading whitespace.
func splitFirstWord(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}
