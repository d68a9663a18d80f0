// Package moderation implements chat.BadWords and chat.URLWhitelist over
// the settings.Store, so operators manage both lists the same way as any
// other live-reloadable setting instead of through a dedicated table.
package moderation

import (
	"strings"

	"github.com/clefbot/clef/internal/settings"
)

// BadWordsKey and URLWhitelistKey are the settings schema keys this
// package expects to be registered as TypeJSON (a []string) fields.
const (
	BadWordsKey     = "moderation.bad_words"
	URLWhitelistKey = "moderation.url_whitelist"
)

// BadWords implements chat.BadWords over a settings.Store key holding a
// JSON array of lowercase words or phrases.
type BadWords struct {
	store *settings.Store
	key   string
}

// NewBadWords builds a BadWords checker reading store's BadWordsKey.
func NewBadWords(store *settings.Store) *BadWords {
	return &BadWords{store: store, key: BadWordsKey}
}

// Enabled reports whether any bad words are currently configured.
func (b *BadWords) Enabled() bool {
	words, ok, err := settings.Get[[]string](b.store, b.key)
	return err == nil && ok && len(words) > 0
}

// Check reports whether word (already lowercased and trimmed by the
// caller) matches a configured entry, either exactly or by containing the
// entry as a substring.
func (b *BadWords) Check(word string) (string, bool) {
	words, ok, err := settings.Get[[]string](b.store, b.key)
	if err != nil || !ok {
		return "", false
	}
	for _, entry := range words {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if word == entry || strings.Contains(word, entry) {
			return entry, true
		}
	}
	return "", false
}

// URLWhitelist implements chat.URLWhitelist over a settings.Store key
// holding a JSON array of allowed hostnames. An empty list means every
// host is disallowed without the bypass scope; Enabled reports whether
// the whitelist is in effect at all.
type URLWhitelist struct {
	store *settings.Store
	key   string
}

// NewURLWhitelist builds a URLWhitelist checker reading store's
// URLWhitelistKey.
func NewURLWhitelist(store *settings.Store) *URLWhitelist {
	return &URLWhitelist{store: store, key: URLWhitelistKey}
}

// Enabled reports whether a whitelist is currently configured.
func (w *URLWhitelist) Enabled() bool {
	_, ok, err := settings.Get[[]string](w.store, w.key)
	return err == nil && ok
}

// IsAllowed reports whether host (already lowercased by the caller)
// matches a configured entry exactly or as a suffix (so "example.com"
// also allows "www.example.com").
func (w *URLWhitelist) IsAllowed(host string) bool {
	hosts, ok, err := settings.Get[[]string](w.store, w.key)
	if err != nil || !ok {
		return false
	}
	for _, entry := range hosts {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
