package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/wumian8998/epg-proxy-newl/pkg/epg"
)

// ErrMissingParams is returned when a query lacks the channel or the date.
var ErrMissingParams = errors.New("missing channel or date parameter")

const (
	// MessageMissingParams is the bad-request payload message.
	MessageMissingParams = "Missing params: ch (or channel/id) or date"

	// MessageOK is the success payload message.
	MessageOK = "请求成功"

	// MessageNotFound is the not-found payload message.
	MessageNotFound = "No programs found"
)

// channelParams are the accepted channel parameter names, in priority order.
var channelParams = []string{"ch", "channel", "id"}

// Request is a point query.
type Request struct {
	Channel string
	Date    string

	// URL is the request origin plus path, echoed in the success payload.
	URL string
}

// ParseRequest reads the channel (ch, channel or id) and date parameters.
func ParseRequest(q url.Values, selfURL string) Request {
	req := Request{
		Date: strings.TrimSpace(q.Get("date")),
		URL:  selfURL,
	}
	for _, name := range channelParams {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			req.Channel = v
			break
		}
	}
	return req
}

// SuccessPayload is returned when programmes were found.
type SuccessPayload struct {
	Code        int           `json:"code"`
	Message     string        `json:"message"`
	ChannelID   string        `json:"channel_id"`
	ChannelName string        `json:"channel_name"`
	Date        string        `json:"date"`
	URL         string        `json:"url"`
	Icon        string        `json:"icon"`
	EPGData     []epg.Program `json:"epg_data"`
}

// DebugInfo echoes the query in a not-found payload.
type DebugInfo struct {
	Channel string `json:"channel"`
	Date    string `json:"date"`
}

// NotFoundPayload is returned when no programmes were found. Channel fields
// are set when the channel resolved but nothing aired on the date.
type NotFoundPayload struct {
	Code        int       `json:"code"`
	Message     string    `json:"message"`
	ChannelID   string    `json:"channel_id,omitempty"`
	ChannelName string    `json:"channel_name,omitempty"`
	DebugInfo   DebugInfo `json:"debug_info"`
}

// ErrorPayload is the body for rejected requests.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is a query answer ready to be written as JSON.
type Response struct {
	StatusCode int
	Payload    any
	Result     epg.Result
}

// Found reports whether programmes were returned.
func (r Response) Found() bool {
	return r.StatusCode == http.StatusOK
}

// Query answers req against the primary source, falling back to the backup
// source when the primary yields no programmes. The backup answer is used
// only when it has at least one programme.
func (s *Service) Query(ctx context.Context, req Request) (Response, error) {
	if req.Channel == "" || req.Date == "" {
		QueriesTotal.WithLabelValues("bad_request").Inc()
		return Response{}, ErrMissingParams
	}

	res := s.Lookup(ctx, s.config.PrimaryURL, req.Channel, req.Date)

	if len(res.Programs) == 0 && s.config.BackupURL != "" {
		s.logger.Info().
			Str("channel", req.Channel).
			Str("date", req.Date).
			Msg("Primary source empty, trying backup")
		backup := s.Lookup(ctx, s.config.BackupURL, req.Channel, req.Date)
		if len(backup.Programs) > 0 {
			res = backup
		}
	}

	if len(res.Programs) == 0 {
		QueriesTotal.WithLabelValues("not_found").Inc()
		payload := NotFoundPayload{
			Code:      http.StatusNotFound,
			Message:   MessageNotFound,
			DebugInfo: DebugInfo{Channel: req.Channel, Date: req.Date},
		}
		if res.Channel != nil {
			payload.ChannelID = res.Channel.ID
			payload.ChannelName = res.Channel.Name
		}
		return Response{StatusCode: http.StatusNotFound, Payload: payload, Result: res}, nil
	}

	QueriesTotal.WithLabelValues("ok").Inc()
	return Response{
		StatusCode: http.StatusOK,
		Payload: SuccessPayload{
			Code:        http.StatusOK,
			Message:     MessageOK,
			ChannelID:   res.Channel.ID,
			ChannelName: res.Channel.Name,
			Date:        req.Date,
			URL:         req.URL,
			Icon:        res.Channel.Icon,
			EPGData:     res.Programs,
		},
		Result: res,
	}, nil
}
