// Package chat implements the streaming platform's line-based chat
// protocol: connection, inbound message parsing, outbound rate-limited
// sending, alias/command dispatch and the top-level reconnecting
// supervisor loop.
package chat

import "strings"

// Message is one parsed line of the chat protocol: optional IRC-style
// tags, an optional prefix, a command, and its parameters.
type Message struct {
	Tags    map[string]string
	Prefix  string
	Command string
	Params  []string
}

// Tag returns the named tag value and whether it was present.
func (m Message) Tag(name string) (string, bool) {
	if m.Tags == nil {
		return "", false
	}
	v, ok := m.Tags[name]
	return v, ok
}

// Trailing returns the final parameter (the PRIVMSG body, by convention),
// or "" if there are no parameters.
func (m Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// ParseMessage decodes one line of the wire protocol:
//
//	[@tag1=val1;tag2=val2 ][:prefix ]COMMAND param1 param2 ... [:trailing]
func ParseMessage(line string) Message {
	var msg Message
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return msg
	}

	if strings.HasPrefix(line, "@") {
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			msg.Tags = parseTags(line[1:])
			return msg
		}
		msg.Tags = parseTags(line[1:sp])
		line = strings.TrimLeft(line[sp+1:], " ")
	}

	if strings.HasPrefix(line, ":") {
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			msg.Prefix = line[1:]
			return msg
		}
		msg.Prefix = line[1:sp]
		line = strings.TrimLeft(line[sp+1:], " ")
	}

	if idx := strings.Index(line, " :"); idx >= 0 {
		head := line[:idx]
		trailing := line[idx+2:]
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return msg
		}
		msg.Command = strings.ToUpper(fields[0])
		msg.Params = append(fields[1:], trailing)
		return msg
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return msg
	}
	msg.Command = strings.ToUpper(fields[0])
	msg.Params = fields[1:]
	return msg
}

func parseTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, "=")
		if !found {
			tags[k] = ""
			continue
		}
		tags[k] = unescapeTagValue(v)
	}
	return tags
}

func unescapeTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] == '\\' && i+1 < len(v) {
			i++
			switch v[i] {
			case 's':
				b.WriteByte(' ')
			case ':':
				b.WriteByte(';')
			case '\\':
				b.WriteByte('\\')
			case 'r':
				b.WriteByte('\r')
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte(v[i])
			}
			continue
		}
		b.WriteByte(v[i])
	}
	return b.String()
}

// EncodePrivmsg renders a PRIVMSG line for the given channel and body.
func EncodePrivmsg(channel, body string) string {
	return "PRIVMSG #" + channel + " :" + body
}

// EncodePass renders the PASS line carrying the bot's OAuth token.
func EncodePass(token string) string {
	return "PASS oauth:" + token
}

// EncodeNick renders the NICK line.
func EncodeNick(login string) string {
	return "NICK " + login
}

// EncodeJoin renders the JOIN line for the given channel.
func EncodeJoin(channel string) string {
	return "JOIN #" + channel
}

// EncodeCapReq renders the capability request line for tags and commands.
func EncodeCapReq() string {
	return "CAP REQ :twitch.tv/tags twitch.tv/commands"
}

// EncodePong renders the PONG reply to a PING.
func EncodePong(body string) string {
	if body == "" {
		return "PONG"
	}
	return "PONG :" + body
}

// EncodeClearMsg renders the moderation directive deleting one message.
func EncodeClearMsg(channel, messageID string) string {
	return EncodePrivmsg(channel, "/delete "+messageID)
}

// EncodeModsQuery renders the inline command requesting the moderator list.
func EncodeModsQuery(channel string) string {
	return EncodePrivmsg(channel, "/mods")
}

// EncodeVipsQuery renders the inline command requesting the VIP list.
func EncodeVipsQuery(channel string) string {
	return EncodePrivmsg(channel, "/vips")
}

// ParseNoticeRoleList extracts the comma-separated login list from a NOTICE
// body such as "The moderators of this channel are: alice, bob." — take the
// substring after the first colon, trim a trailing period, split on comma.
func ParseNoticeRoleList(body string) []string {
	_, rest, found := strings.Cut(body, ":")
	if !found {
		return nil
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, ".")
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
