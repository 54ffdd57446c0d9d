package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wumian8998/epg-proxy-newl/internal/testutil"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantChannel string
		wantDate    string
	}{
		{"ch", "ch=CCTV1&date=2024-01-15", "CCTV1", "2024-01-15"},
		{"channel", "channel=CCTV1&date=2024-01-15", "CCTV1", "2024-01-15"},
		{"id", "id=CCTV1&date=2024-01-15", "CCTV1", "2024-01-15"},
		{"ch wins over channel and id", "id=C&channel=B&ch=A&date=2024-01-15", "A", "2024-01-15"},
		{"empty ch falls through", "ch=&channel=B&date=2024-01-15", "B", "2024-01-15"},
		{"trimmed", "ch=%20CCTV1%20&date=%202024-01-15", "CCTV1", "2024-01-15"},
		{"missing both", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			req := ParseRequest(q, "http://proxy.local/epg/diyp")
			assert.Equal(t, tt.wantChannel, req.Channel)
			assert.Equal(t, tt.wantDate, req.Date)
			assert.Equal(t, "http://proxy.local/epg/diyp", req.URL)
		})
	}
}

func TestQuery_MissingParams(t *testing.T) {
	h := newHarness(t, harnessConfig{})

	for _, req := range []Request{{Date: "2024-01-15"}, {Channel: "CCTV1"}, {}} {
		_, err := h.svc.Query(context.Background(), req)
		assert.ErrorIs(t, err, ErrMissingParams)
	}
	assert.Equal(t, 0, h.mock.GetRequestCount())
}

func TestQuery_Success(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	h.mock.SetDocument("/primary.xml", testutil.SampleDocument)

	resp, err := h.svc.Query(context.Background(), Request{
		Channel: "CCTV1",
		Date:    "2024-01-15",
		URL:     "http://proxy.local/epg/diyp",
	})
	require.NoError(t, err)
	assert.True(t, resp.Found())

	data, err := json.Marshal(resp.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"code": 200,
		"message": "请求成功",
		"channel_id": "cctv1.example",
		"channel_name": "CCTV1",
		"date": "2024-01-15",
		"url": "http://proxy.local/epg/diyp",
		"icon": "https://img.example.com/cctv1.png",
		"epg_data": [{"start": "06:30", "end": "07:00", "title": "Morning News", "desc": "Daily headlines."}]
	}`, string(data))
}

func TestQuery_ChannelWithoutProgrammes(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	h.mock.SetDocument("/primary.xml", testutil.SampleDocument)

	resp, err := h.svc.Query(context.Background(), Request{Channel: "CCTV1", Date: "2024-01-16"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	data, err := json.Marshal(resp.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"code": 404,
		"message": "No programs found",
		"channel_id": "cctv1.example",
		"channel_name": "CCTV1",
		"debug_info": {"channel": "CCTV1", "date": "2024-01-16"}
	}`, string(data))
}

func TestQuery_UnknownChannel(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	h.mock.SetDocument("/primary.xml", testutil.SampleDocument)

	resp, err := h.svc.Query(context.Background(), Request{Channel: "HBO", Date: "2024-01-15"})
	require.NoError(t, err)
	assert.False(t, resp.Found())

	data, err := json.Marshal(resp.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"code": 404,
		"message": "No programs found",
		"debug_info": {"channel": "HBO", "date": "2024-01-15"}
	}`, string(data))
}

func TestQuery_UpstreamDownIsNotFound(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	h.mock.SetStatus("/primary.xml", http.StatusInternalServerError)

	resp, err := h.svc.Query(context.Background(), Request{Channel: "CCTV1", Date: "2024-01-15"})
	require.NoError(t, err, "upstream errors never reach the caller")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuery_BackupFallback(t *testing.T) {
	h := newHarness(t, harnessConfig{backup: true})
	h.mock.SetStatus("/primary.xml", http.StatusServiceUnavailable)
	h.mock.SetDocument("/backup.xml", testutil.SampleDocument)

	resp, err := h.svc.Query(context.Background(), Request{Channel: "CCTV1", Date: "2024-01-15"})
	require.NoError(t, err)
	require.True(t, resp.Found())
	assert.Equal(t, "cctv1.example", resp.Result.Channel.ID)
	assert.Equal(t, 1, h.mock.Count("/backup.xml"))
}

func TestQuery_BackupOnlyWhenPrimaryEmpty(t *testing.T) {
	h := newHarness(t, harnessConfig{backup: true})
	h.mock.SetDocument("/primary.xml", testutil.SampleDocument)
	h.mock.SetDocument("/backup.xml", testutil.SampleDocument)

	resp, err := h.svc.Query(context.Background(), Request{Channel: "CCTV1", Date: "2024-01-15"})
	require.NoError(t, err)
	assert.True(t, resp.Found())
	assert.Equal(t, 0, h.mock.Count("/backup.xml"))
}

func TestQuery_EmptyBackupKeepsPrimaryChannel(t *testing.T) {
	h := newHarness(t, harnessConfig{backup: true})
	h.mock.SetDocument("/primary.xml", testutil.SampleDocument)
	h.mock.SetDocument("/backup.xml", testutil.BuildDocument([]testutil.ChannelSpec{
		{ID: "other.example", DisplayName: "Other"},
	}, nil))

	resp, err := h.svc.Query(context.Background(), Request{Channel: "CCTV1", Date: "2024-01-16"})
	require.NoError(t, err)
	assert.False(t, resp.Found())

	payload, ok := resp.Payload.(NotFoundPayload)
	require.True(t, ok)
	assert.Equal(t, "cctv1.example", payload.ChannelID)
	assert.Equal(t, 1, h.mock.Count("/backup.xml"))
}

func TestQuery_EmptyBackupLendsNoChannel(t *testing.T) {
	h := newHarness(t, harnessConfig{backup: true})
	h.mock.SetDocument("/primary.xml", testutil.BuildDocument([]testutil.ChannelSpec{
		{ID: "other.example", DisplayName: "Other"},
	}, nil))
	h.mock.SetDocument("/backup.xml", testutil.SampleDocument)

	resp, err := h.svc.Query(context.Background(), Request{Channel: "CCTV1", Date: "2030-01-01"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, h.mock.Count("/backup.xml"))

	data, err := json.Marshal(resp.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"code": 404,
		"message": "No programs found",
		"debug_info": {"channel": "CCTV1", "date": "2030-01-01"}
	}`, string(data))
}
