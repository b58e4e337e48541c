package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/joao-fontenele/storefront-core/internal/catalog"
	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/profile"
)

// StatusError is returned when the storefront answers with an unexpected status.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storefront returned status %d for %s", e.Code, e.Path)
}

// HTTPUpstream reads and provisions against the storefront HTTP surface.
type HTTPUpstream struct {
	baseURL string
	client  *http.Client
}

func NewHTTPUpstream(baseURL string, client *http.Client) *HTTPUpstream {
	return &HTTPUpstream{
		baseURL: baseURL,
		client:  client,
	}
}

// ListProducts fetches the active products with ids above afterID.
func (u *HTTPUpstream) ListProducts(ctx context.Context, afterID int64, limit int) (catalog.Page, error) {
	var page catalog.Page
	query := url.Values{
		"after_id": {strconv.FormatInt(afterID, 10)},
		"limit":    {strconv.Itoa(limit)},
	}
	err := u.get(ctx, "/api/products", query, &page)
	return page, err
}

// GetProduct returns nil when the storefront no longer knows the product.
func (u *HTTPUpstream) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var body struct {
		Product *domain.Product `json:"product"`
	}
	err := u.get(ctx, "/api/products/"+strconv.FormatInt(id, 10), nil, &body)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body.Product, nil
}

func (u *HTTPUpstream) ProvisionUser(ctx context.Context, identity profile.ExternalIdentity) (profile.Provisioned, error) {
	var p profile.Provisioned

	data, err := json.Marshal(identity)
	if err != nil {
		return p, fmt.Errorf("marshal identity: %w", err)
	}

	const path = "/api/user/telegram/create"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return p, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return p, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return p, &StatusError{Path: path, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return p, fmt.Errorf("decode provision response: %w", err)
	}
	if p.UserID == 0 {
		return p, fmt.Errorf("provision response for %d carries no user id", identity.ExternalID)
	}
	return p, nil
}

func (u *HTTPUpstream) ListUsers(ctx context.Context, offset, limit int) (profile.UserPage, error) {
	var page profile.UserPage
	err := u.get(ctx, "/api/users", pageQuery(offset, limit), &page)
	return page, err
}

func (u *HTTPUpstream) get(ctx context.Context, path string, query url.Values, dst any) error {
	target := u.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Path: path, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func pageQuery(offset, limit int) url.Values {
	return url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
}
