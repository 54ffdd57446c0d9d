package testutil

import (
	"fmt"
	"strings"
)

// SampleDocument is a small XMLTV document with one CCTV1 channel and one
// morning programme on 2024-01-15.
const SampleDocument = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="test">
  <channel id="cctv1.example">
    <display-name lang="zh">CCTV1</display-name>
    <icon src="https://img.example.com/cctv1.png" />
  </channel>
  <programme start="20240115063000 +0800" stop="20240115070000 +0800" channel="cctv1.example">
    <title lang="zh">Morning News</title>
    <desc lang="zh">Daily headlines.</desc>
  </programme>
</tv>
`

// ProgrammeSpec describes one programme for BuildDocument.
type ProgrammeSpec struct {
	Channel string
	Start   string
	Stop    string
	Title   string
	Desc    string
}

// ChannelSpec describes one channel for BuildDocument.
type ChannelSpec struct {
	ID          string
	DisplayName string
	Icon        string
}

// BuildDocument renders channels and programmes as an XMLTV document.
// Empty Stop, Title or Desc fields omit the corresponding attribute or element.
func BuildDocument(channels []ChannelSpec, programmes []ProgrammeSpec) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<tv>\n")
	for _, ch := range channels {
		if ch.ID != "" {
			fmt.Fprintf(&b, "  <channel id=%q>\n", ch.ID)
		} else {
			b.WriteString("  <channel>\n")
		}
		fmt.Fprintf(&b, "    <display-name lang=\"zh\">%s</display-name>\n", ch.DisplayName)
		if ch.Icon != "" {
			fmt.Fprintf(&b, "    <icon src=%q />\n", ch.Icon)
		}
		b.WriteString("  </channel>\n")
	}
	for _, p := range programmes {
		fmt.Fprintf(&b, "  <programme start=%q", p.Start)
		if p.Stop != "" {
			fmt.Fprintf(&b, " stop=%q", p.Stop)
		}
		fmt.Fprintf(&b, " channel=%q>\n", p.Channel)
		if p.Title != "" {
			fmt.Fprintf(&b, "    <title lang=\"zh\">%s</title>\n", p.Title)
		}
		if p.Desc != "" {
			fmt.Fprintf(&b, "    <desc lang=\"zh\">%s</desc>\n", p.Desc)
		}
		b.WriteString("  </programme>\n")
	}
	b.WriteString("</tv>\n")
	return b.String()
}
