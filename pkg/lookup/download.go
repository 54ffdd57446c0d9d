package lookup

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/wumian8998/epg-proxy-newl/pkg/fetch"
)

// Format selects the encoding of a raw document download.
type Format string

const (
	// FormatXML is the plain XMLTV document.
	FormatXML Format = "xml"

	// FormatGzip is the gzip-compressed document.
	FormatGzip Format = "gz"
)

// ContentType returns the Content-Type served for the format.
func (f Format) ContentType() string {
	if f == FormatGzip {
		return "application/gzip"
	}
	return "application/xml; charset=utf-8"
}

// Download is an open raw document stream. Callers must close Body.
type Download struct {
	Format      Format
	ContentType string
	Body        io.ReadCloser
	Origin      fetch.Origin
}

// Download opens the primary source in the requested format, decompressing or
// compressing on the fly. It bypasses the memory tier and the breaker.
func (s *Service) Download(ctx context.Context, format Format) (*Download, error) {
	if format != FormatXML && format != FormatGzip {
		return nil, fmt.Errorf("unsupported download format %q", format)
	}

	src, err := s.config.Fetcher.Fetch(ctx, s.config.PrimaryURL)
	if err != nil {
		DownloadsTotal.WithLabelValues(string(format), "error").Inc()
		return nil, err
	}

	var body io.ReadCloser
	switch {
	case format == FormatXML && src.Compressed:
		zr, err := gzip.NewReader(src.Body)
		if err != nil {
			src.Body.Close()
			DownloadsTotal.WithLabelValues(string(format), "error").Inc()
			return nil, &fetch.Error{Kind: fetch.KindDecode, URL: src.URL, Err: err}
		}
		body = &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return src.Body.Close()
		}}
	case format == FormatGzip && !src.Compressed:
		body = compressStream(src.Body)
	default:
		body = src.Body
	}

	DownloadsTotal.WithLabelValues(string(format), "ok").Inc()
	s.logger.Info().
		Str("source", src.URL).
		Str("format", string(format)).
		Str("origin", string(src.Origin)).
		Msg("Streaming raw document")
	return &Download{
		Format:      format,
		ContentType: format.ContentType(),
		Body:        body,
		Origin:      src.Origin,
	}, nil
}

// compressStream gzips r as it is read.
func compressStream(r io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		zw := gzip.NewWriter(pw)
		_, err := io.Copy(zw, r)
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
		r.Close()
		pw.CloseWithError(err)
	}()
	return pr
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc *readCloser) Close() error {
	return rc.close()
}
