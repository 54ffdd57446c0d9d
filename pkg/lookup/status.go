package lookup

import (
	"context"
	"errors"
	"time"

	"github.com/wumian8998/epg-proxy-newl/pkg/cache"
	"github.com/wumian8998/epg-proxy-newl/pkg/persist"
)

// Provenance tells where a status snapshot came from.
type Provenance string

const (
	ProvenanceMemory     Provenance = "memory"
	ProvenancePersistent Provenance = "persistent-cache"
	ProvenanceUnknown    Provenance = "unknown"
)

// LabelWaiting is shown for a source that has never been fetched.
const LabelWaiting = "等待调用"

// labelLayout renders MM-DD HH:MM:SS.
const labelLayout = "01-02 15:04:05"

// Status is a read-only snapshot of one source.
type Status struct {
	Source         string     `json:"source"`
	TimestampLabel string     `json:"timestamp_label"`
	Provenance     Provenance  `json:"provenance"`
	State          cache.State `json:"state,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
}

// Snapshot holds the status of the configured sources.
type Snapshot struct {
	Primary Status  `json:"primary"`
	Backup  *Status `json:"backup,omitempty"`
}

// StatusOf reports when sourceURL was last fetched and from where that fact is
// known. The memory record wins and also gives the source state; otherwise the
// persistent tier's fetch-time stamp is used. It never fetches and never
// mutates state.
func (s *Service) StatusOf(ctx context.Context, sourceURL string) Status {
	st := Status{Source: sourceURL}

	if rec, ok := s.config.Store.Get(sourceURL); ok {
		st.Provenance = ProvenanceMemory
		st.State = rec.State(s.config.Clock.Now(), s.config.Breaker.Cooldown())
		st.TimestampLabel = s.label(rec.LastFetchAt)
		st.ErrorMessage = rec.LastErrorMessage
		return st
	}

	if s.config.Persist.Available() {
		header, err := s.config.Persist.MatchHeader(ctx, sourceURL)
		if err == nil {
			if ts, ok := persist.FetchTime(header); ok {
				st.Provenance = ProvenancePersistent
				st.TimestampLabel = s.label(ts)
				return st
			}
		} else if !errors.Is(err, persist.ErrMiss) {
			s.logger.Debug().Err(err).Str("source", sourceURL).Msg("Persistent status lookup failed")
		}
	}

	st.Provenance = ProvenanceUnknown
	st.State = cache.StateCold
	st.TimestampLabel = LabelWaiting
	return st
}

// Statuses returns the primary status and, when configured, the backup status.
func (s *Service) Statuses(ctx context.Context) Snapshot {
	snap := Snapshot{Primary: s.StatusOf(ctx, s.config.PrimaryURL)}
	if s.config.BackupURL != "" {
		backup := s.StatusOf(ctx, s.config.BackupURL)
		snap.Backup = &backup
	}
	return snap
}

func (s *Service) label(t time.Time) string {
	if t.IsZero() {
		return LabelWaiting
	}
	return t.In(s.config.Location).Format(labelLayout)
}
