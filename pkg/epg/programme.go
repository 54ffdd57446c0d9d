package epg

import (
	"regexp"
	"strings"
)

const (
	programmeOpen  = "<programme"
	programmeClose = "</programme>"
)

var (
	progStartRe = regexp.MustCompile(`start="([^"]+)"`)
	progStopRe  = regexp.MustCompile(`stop="([^"]+)"`)
	progTitleRe = regexp.MustCompile(`(?s)<title[^>]*>(.*?)</title>`)
	progDescRe  = regexp.MustCompile(`(?s)<desc[^>]*>(.*?)</desc>`)
	cdataRe     = regexp.MustCompile(`(?is)<!\[CDATA\[(.*?)\]\]>`)
)

// ExtractPrograms returns, in document order, every programme referencing
// channelID whose start timestamp begins with date's compact YYYYMMDD form.
// Inclusion is keyed on the start date alone; no timezone conversion happens.
func (e *Engine) ExtractPrograms(doc, channelID, date string) []Program {
	if channelID == "" {
		return nil
	}
	prefix := CompactDate(date)
	attr := `channel="` + channelID + `"`

	var programs []Program
	pos := strings.Index(doc, attr)
	for pos != -1 {
		next := pos + len(attr)

		if block, end, ok := programmeAround(doc, pos); ok {
			next = end
			if p, ok := e.parseProgramme(block, prefix); ok {
				programs = append(programs, p)
			}
		}

		i := strings.Index(doc[next:], attr)
		if i == -1 {
			break
		}
		pos = next + i
	}
	return programs
}

// programmeAround returns the <programme> block containing offset pos and the
// offset just past its closing tag.
func programmeAround(doc string, pos int) (string, int, bool) {
	start := strings.LastIndex(doc[:pos], programmeOpen)
	if start == -1 {
		return "", 0, false
	}
	// The attribute must sit inside this block, not after an earlier one closed.
	if strings.Contains(doc[start:pos], programmeClose) {
		return "", 0, false
	}
	end := strings.Index(doc[pos:], programmeClose)
	if end == -1 {
		return "", 0, false
	}
	end += pos + len(programmeClose)
	return doc[start:end], end, true
}

func (e *Engine) parseProgramme(block, prefix string) (Program, bool) {
	start := submatch(progStartRe, block)
	if start == "" || !strings.HasPrefix(start, prefix) {
		return Program{}, false
	}

	p := Program{
		Start: FormatClock(start),
		End:   FormatClock(submatch(progStopRe, block)),
		Title: e.defaultTitle,
	}
	if m := progTitleRe.FindStringSubmatch(block); m != nil {
		p.Title = cleanContent(m[1])
	}
	if m := progDescRe.FindStringSubmatch(block); m != nil {
		p.Desc = cleanContent(m[1])
	}
	return p, true
}

func cleanContent(s string) string {
	return strings.TrimSpace(cdataRe.ReplaceAllString(s, "$1"))
}

// CompactDate turns YYYY-MM-DD into YYYYMMDD.
func CompactDate(date string) string {
	return strings.ReplaceAll(strings.TrimSpace(date), "-", "")
}

// FormatClock renders an XMLTV timestamp (YYYYMMDDhhmmss ...) as HH:MM using
// fixed offsets. Timestamps shorter than 12 characters yield "".
func FormatClock(raw string) string {
	if len(raw) < 12 {
		return ""
	}
	return raw[8:10] + ":" + raw[10:12]
}
