package sandbox

import (
	"net/http"
	"net/http/httptest"
)

// Transport returns a RoundTripper that serves requests from h in-process,
// without opening a socket.
func Transport(h http.Handler) http.RoundTripper {
	return handlerTransport{handler: h}
}

type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	inner := req.Clone(req.Context())
	if inner.Body == nil {
		inner.Body = http.NoBody
	}
	inner.RequestURI = req.URL.RequestURI()

	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, inner)

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
