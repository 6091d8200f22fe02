package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"

	pkghttp "github.com/eishro/storeguard/pkg/http"
	"github.com/eishro/storeguard/pkg/sanitize"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBodyBytes bounds the body CaptureRequest will buffer.
const DefaultMaxBodyBytes int64 = 1 << 20

// Payload is the parsed, mutable view of a request the security stages operate
// on. Body is nil for requests with an empty body.
type Payload struct {
	Body   sanitize.Value
	Query  *sanitize.Object
	Params *sanitize.Object

	form bool
}

type payloadKey struct{}

// PayloadFromContext returns the payload captured for the request, if any.
func PayloadFromContext(ctx context.Context) *Payload {
	p, _ := ctx.Value(payloadKey{}).(*Payload)
	return p
}

var errBodyTooLarge = errors.New("request body too large")

// CaptureRequest parses the body, query string and route params once so
// later stages can inspect and rewrite them. The body reader is restored for
// the handler.
func CaptureRequest(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, err := capture(r, maxBytes)
			if err != nil {
				if errors.Is(err, errBodyTooLarge) {
					pkghttp.WriteError(w, http.StatusRequestEntityTooLarge, pkghttp.CodeBadRequest, "Request body too large")
					return
				}
				pkghttp.WriteBadRequest(w, "Invalid JSON body")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// payloadFor returns the request's payload, capturing it with the default
// limit when no CaptureRequest stage ran earlier.
func payloadFor(r *http.Request) (*Payload, *http.Request, error) {
	if p := PayloadFromContext(r.Context()); p != nil {
		return p, r, nil
	}
	r, err := capture(r, DefaultMaxBodyBytes)
	if err != nil {
		return nil, r, err
	}
	return PayloadFromContext(r.Context()), r, nil
}

func capture(r *http.Request, maxBytes int64) (*http.Request, error) {
	p := &Payload{
		Query:  queryObject(r.URL.Query()),
		Params: paramsObject(r),
	}

	if r.Body != nil && r.Body != http.NoBody {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		_ = r.Body.Close()
		if err != nil {
			return r, err
		}
		if int64(len(raw)) > maxBytes {
			return r, errBodyTooLarge
		}
		restoreBody(r, raw)

		switch {
		case len(bytes.TrimSpace(raw)) == 0:
		case bodyKind(r) == "form":
			form, err := url.ParseQuery(string(raw))
			if err != nil {
				return r, err
			}
			p.Body = queryObject(form)
			p.form = true
		default:
			body, err := sanitize.FromJSON(raw)
			if err != nil {
				return r, err
			}
			p.Body = body
		}
	}

	return r.WithContext(context.WithValue(r.Context(), payloadKey{}, p)), nil
}

// bodyKind returns "form" for urlencoded bodies and "json" for everything
// else. Handlers decode bodies as JSON whatever the declared type, so a body
// labelled text/plain or sent without a Content-Type is parsed the same way,
// and one that is not valid JSON is rejected rather than skipped.
func bodyKind(r *http.Request) string {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == "application/x-www-form-urlencoded" {
		return "form"
	}
	return "json"
}

func restoreBody(r *http.Request, raw []byte) {
	r.Body = io.NopCloser(bytes.NewReader(raw))
	r.ContentLength = int64(len(raw))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
}

func queryObject(q url.Values) *sanitize.Object {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := sanitize.NewObject()
	for _, k := range keys {
		vals := q[k]
		if len(vals) == 1 {
			obj.Set(k, sanitize.String(vals[0]))
			continue
		}
		arr := make(sanitize.Array, 0, len(vals))
		for _, v := range vals {
			arr = append(arr, sanitize.String(v))
		}
		obj.Set(k, arr)
	}
	return obj
}

func paramsObject(r *http.Request) *sanitize.Object {
	obj := sanitize.NewObject()
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return obj
	}
	for i, k := range rctx.URLParams.Keys {
		if k == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		obj.Set(k, sanitize.String(rctx.URLParams.Values[i]))
	}
	return obj
}

// commit writes a rewritten payload back into r so handlers see the sanitized
// body, query and params.
func commit(r *http.Request, p *Payload) error {
	if p.Body != nil {
		if form, ok := p.Body.(*sanitize.Object); ok && p.form {
			restoreBody(r, []byte(encodeValues(form)))
		} else {
			raw, err := p.Body.MarshalJSON()
			if err != nil {
				return err
			}
			restoreBody(r, raw)
		}
	}

	if p.Query != nil && p.Query.Len() > 0 {
		r.URL.RawQuery = encodeValues(p.Query)
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil && p.Params != nil {
		for i, k := range rctx.URLParams.Keys {
			if v, ok := p.Params.Get(k); ok && i < len(rctx.URLParams.Values) {
				s, _ := sanitize.StringOf(v)
				rctx.URLParams.Values[i] = s
			}
		}
	}
	return nil
}

func encodeValues(obj *sanitize.Object) string {
	q := url.Values{}
	for _, k := range obj.Keys() {
		v, _ := obj.Get(k)
		if arr, ok := v.(sanitize.Array); ok {
			for _, item := range arr {
				s, _ := sanitize.StringOf(item)
				q.Add(k, s)
			}
			continue
		}
		s, _ := sanitize.StringOf(v)
		q.Set(k, s)
	}
	return q.Encode()
}

// bodyString returns a top-level string field of the JSON body.
func (p *Payload) bodyString(field string) (string, bool) {
	if p == nil {
		return "", false
	}
	obj, ok := p.Body.(*sanitize.Object)
	if !ok {
		return "", false
	}
	v, ok := obj.Get(field)
	if !ok {
		return "", false
	}
	s, ok := v.(sanitize.String)
	return string(s), ok
}
