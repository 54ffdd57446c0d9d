package epg

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	channelOpen  = "<channel"
	channelClose = "</channel>"
)

var (
	channelIDRe   = regexp.MustCompile(`id="([^"]+)"`)
	channelIconRe = regexp.MustCompile(`<icon src="([^"]+)"`)
	displayNameRe = regexp.MustCompile(`<display-name[^>]*>([^<]+)</display-name>`)
)

// ResolveChannel finds the channel named query. An exact display-name match
// (case-insensitive, surrounding whitespace ignored) wins; otherwise the first
// channel block in document order whose normalized display name equals the
// normalized query is used.
func (e *Engine) ResolveChannel(doc, query string) (*Channel, bool) {
	name := strings.TrimSpace(query)
	if name == "" {
		return nil, false
	}
	if ch, ok := exactChannel(doc, name); ok {
		return ch, true
	}
	return fuzzyChannel(doc, Normalize(name))
}

func exactChannel(doc, name string) (*Channel, bool) {
	re, err := regexp.Compile(`(?i)<display-name[^>]*>\s*` + regexp.QuoteMeta(name) + `\s*</display-name>`)
	if err != nil {
		return nil, false
	}
	loc := re.FindStringIndex(doc)
	if loc == nil {
		return nil, false
	}

	start := strings.LastIndex(doc[:loc[0]], channelOpen)
	if start == -1 {
		return nil, false
	}
	end := strings.Index(doc[loc[0]:], channelClose)
	if end == -1 {
		return nil, false
	}
	block := doc[start : loc[0]+end+len(channelClose)]

	id := submatch(channelIDRe, block)
	if id == "" {
		return nil, false
	}
	return &Channel{
		ID:   id,
		Name: name,
		Icon: submatch(channelIconRe, block),
	}, true
}

func fuzzyChannel(doc, want string) (*Channel, bool) {
	pos := strings.Index(doc, channelOpen)
	for pos != -1 {
		end := strings.Index(doc[pos:], channelClose)
		if end == -1 {
			break
		}
		end += pos + len(channelClose)
		block := doc[pos:end]

		if display := submatch(displayNameRe, block); display != "" && Normalize(display) == want {
			// A block without an id cannot be referenced by programmes.
			if id := submatch(channelIDRe, block); id != "" {
				return &Channel{
					ID:   id,
					Name: display,
					Icon: submatch(channelIconRe, block),
				}, true
			}
		}

		next := strings.Index(doc[end:], channelOpen)
		if next == -1 {
			break
		}
		pos = end + next
	}
	return nil, false
}

// Normalize upper-cases name and strips whitespace, hyphens and underscores, so
// "CCTV-1", "cctv 1" and "CCTV_1" compare equal.
func Normalize(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			return -1
		}
		return r
	}, strings.ToUpper(name))
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
