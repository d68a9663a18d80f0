package chat

import (
	"regexp"
	"strconv"
	"strings"
)

// StoredCommand is a channel-defined templated response, keyed by its
// trigger word (the command DB, distinct from the bang-command Registry).
type StoredCommand struct {
	Name         string
	Template     string
	CountEnabled bool
	Count        int
}

// CommandDB looks up and increments channel-defined templated commands.
type CommandDB interface {
	Lookup(channel, name string) (StoredCommand, bool)
	IncrementCount(channel, name string) (int, error)
}

var templateVarPattern = regexp.MustCompile(`\{(\w+)\}`)

// RenderTemplate substitutes {name}, {target}, {count}, and {N} (1-based
// capture group) placeholders in tmpl.
func RenderTemplate(tmpl, name, target string, count int, captures []string) string {
	return templateVarPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := templateVarPattern.FindStringSubmatch(match)[1]
		switch key {
		case "name":
			return name
		case "target":
			return target
		case "count":
			return strconv.Itoa(count)
		default:
			if idx, err := strconv.Atoi(key); err == nil && idx >= 1 && idx <= len(captures) {
				return captures[idx-1]
			}
			return match
		}
	})
}

// MatchCommand looks up name in db for channel. If the template references
// {count}, the stored count is incremented first and the incremented value
// is used. rest is passed through as the rendered {target}.
func MatchCommand(db CommandDB, channel, name, rest string) (string, bool, error) {
	cmd, ok := db.Lookup(channel, name)
	if !ok {
		return "", false, nil
	}
	count := cmd.Count
	if strings.Contains(cmd.Template, "{count}") {
		next, err := db.IncrementCount(channel, name)
		if err != nil {
			return "", true, err
		}
		count = next
	}
	rendered := RenderTemplate(cmd.Template, name, rest, count, nil)
	return rendered, true, nil
}
