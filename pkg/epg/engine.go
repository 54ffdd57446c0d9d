// Package epg answers channel+date queries against a raw XMLTV document.
//
// The document is never parsed into a tree. Block boundaries (<channel>,
// <programme>) are located with literal substring search and small regular
// expressions run only inside an extracted block, so work stays proportional to
// the matched region rather than the whole document. The single exception is
// the exact display-name search, which is one linear regexp pass.
package epg

// DefaultTitle is reported for programmes without a <title> element.
const DefaultTitle = "节目"

// Channel is a channel resolved from the document.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Program is one scheduled programme on the target date.
type Program struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
}

// Result is the outcome of a query. Channel is nil when no channel matched.
type Result struct {
	Channel  *Channel
	Programs []Program
	Date     string
}

// Empty reports whether the result carries no programmes.
func (r Result) Empty() bool {
	return len(r.Programs) == 0
}

// Engine resolves channels and extracts programmes.
type Engine struct {
	defaultTitle string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultTitle overrides the placeholder title for untitled programmes.
func WithDefaultTitle(title string) Option {
	return func(e *Engine) {
		e.defaultTitle = title
	}
}

// NewEngine creates a query engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{defaultTitle: DefaultTitle}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveAndExtract resolves channelQuery in doc and returns its programmes for
// date (YYYY-MM-DD). When the channel resolves but nothing airs on that date the
// result keeps the channel with an empty programme list.
func (e *Engine) ResolveAndExtract(doc, channelQuery, date string) Result {
	ch, ok := e.ResolveChannel(doc, channelQuery)
	if !ok {
		return Result{Date: date}
	}
	return Result{
		Channel:  ch,
		Programs: e.ExtractPrograms(doc, ch.ID, date),
		Date:     date,
	}
}
