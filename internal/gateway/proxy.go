package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront-core/internal/httpx"
)

// forwardedHeaders are passed through to the storefront untouched. The caller
// identity is not among them: it is replaced by the storefront's own user id.
var forwardedHeaders = []string{
	"Content-Type",
	"Idempotency-Key",
	"X-Request-Id",
}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest replays r against path on the upstream service, keeping the
// query string. userID, when positive, is sent as the caller identity.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string, userID int64) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if userID > 0 {
		req.Header.Set(httpx.UserIDHeader, strconv.FormatInt(userID, 10))
	}

	return p.client.Do(req)
}
