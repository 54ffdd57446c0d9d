package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "plain url",
			key:  Key{URL: "https://epg.example.com/e.xml"},
			want: "epg:source:https://epg.example.com/e.xml",
		},
		{
			name: "host and scheme lower-cased",
			key:  Key{URL: "HTTPS://EPG.Example.com/Path/E.xml"},
			want: "epg:source:https://epg.example.com/Path/E.xml",
		},
		{
			name: "query params sorted",
			key:  Key{URL: "https://epg.example.com/e.xml?z=1&a=2"},
			want: "epg:source:https://epg.example.com/e.xml?a=2&z=1",
		},
		{
			name: "fragment dropped",
			key:  Key{URL: "https://epg.example.com/e.xml#top"},
			want: "epg:source:https://epg.example.com/e.xml",
		},
		{
			name: "surrounding whitespace trimmed",
			key:  Key{URL: "  https://epg.example.com/e.xml  "},
			want: "epg:source:https://epg.example.com/e.xml",
		},
		{
			name: "unparsable kept",
			key:  Key{URL: "not a url"},
			want: "epg:source:not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
		})
	}
}

func TestKey_MetaAndBody(t *testing.T) {
	k := Key{URL: "https://epg.example.com/e.xml"}
	assert.Equal(t, "epg:source:https://epg.example.com/e.xml:meta", k.Meta())
	assert.Equal(t, "epg:source:https://epg.example.com/e.xml:body", k.Body())
	assert.NotEqual(t, k.Meta(), k.Body(), "meta and body keys must differ")
}

func TestKey_Deterministic(t *testing.T) {
	a := Key{URL: "https://epg.example.com/e.xml?b=2&a=1"}
	b := Key{URL: "https://EPG.example.com/e.xml?a=1&b=2"}
	assert.Equal(t, a.String(), b.String(), "equivalent URLs must share a key")
}
