package middleware

import (
	"bytes"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/eishro/storeguard/pkg/sanitize"
)

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// SanitizeResponse buffers JSON responses and strips markup from every string
// before they reach the client. On any failure the original payload is sent.
func SanitizeResponse(s *sanitize.XSSSanitizer, level sanitize.Level, auditor *Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := &bufferedResponse{header: w.Header()}
			next.ServeHTTP(buf, r)

			status := buf.status
			if status == 0 {
				status = http.StatusOK
			}

			out := buf.body.Bytes()
			if isJSONResponse(w.Header()) && len(out) > 0 {
				if clean, err := sanitizeJSON(s, level, out); err != nil {
					auditor.Logger().Warn("response sanitization skipped",
						slog.String("path", r.URL.Path),
						slog.Any("error", err))
				} else {
					out = clean
				}
			}

			w.Header().Set("Content-Length", strconv.Itoa(len(out)))
			w.WriteHeader(status)
			_, _ = w.Write(out)
		})
	}
}

func isJSONResponse(h http.Header) bool {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func sanitizeJSON(s *sanitize.XSSSanitizer, level sanitize.Level, raw []byte) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("sanitizer panic: %v", rec)
		}
	}()

	v, err := sanitize.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	clean, err := s.Sanitize(v, level).MarshalJSON()
	if err != nil {
		return nil, err
	}
	// json.Encoder output ends with a newline; keep that shape
	if bytes.HasSuffix(raw, []byte("\n")) {
		clean = append(clean, '\n')
	}
	return clean, nil
}
