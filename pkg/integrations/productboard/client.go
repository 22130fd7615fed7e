package productboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/httputil"
	"github.com/matzehuels/planbridge/pkg/integrations"
)

// DefaultBaseURL is the ProductBoard public API endpoint.
const DefaultBaseURL = "https://api.productboard.com"

// maxPages bounds pagination in case the API keeps handing out cursors.
const maxPages = 500

// Client provides access to the ProductBoard API.
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a ProductBoard client authenticated with an API token.
// Responses are cached in backend for cacheTTL.
func NewClient(backend cache.Cache, token string, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "productboard", cacheTTL, authHeaders(token)),
		baseURL: DefaultBaseURL,
	}
}

// SetBaseURL points the client at a different API host.
func (c *Client) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = u
	}
}

func authHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"X-Version":     "1",
		"Accept":        integrations.ContentJSON,
	}
}

// ListProducts returns all products.
func (c *Client) ListProducts(ctx context.Context, refresh bool) ([]Product, error) {
	var out []Product
	err := c.Cached(ctx, "products", refresh, &out, func() error {
		return listAll(ctx, c, "/products", &out)
	})
	return out, err
}

// ListComponents returns all components.
func (c *Client) ListComponents(ctx context.Context, refresh bool) ([]Component, error) {
	var out []Component
	err := c.Cached(ctx, "components", refresh, &out, func() error {
		return listAll(ctx, c, "/components", &out)
	})
	return out, err
}

// ListFeatures returns all features and subfeatures.
func (c *Client) ListFeatures(ctx context.Context, refresh bool) ([]Feature, error) {
	var out []Feature
	err := c.Cached(ctx, "features", refresh, &out, func() error {
		return listAll(ctx, c, "/features", &out)
	})
	return out, err
}

// ListInitiatives returns all initiatives without their feature links.
func (c *Client) ListInitiatives(ctx context.Context, refresh bool) ([]Initiative, error) {
	var out []Initiative
	err := c.Cached(ctx, "initiatives", refresh, &out, func() error {
		return listAll(ctx, c, "/initiatives", &out)
	})
	return out, err
}

// ListInitiativeFeatures returns the ids of the features linked to an initiative.
func (c *Client) ListInitiativeFeatures(ctx context.Context, initiativeID string, refresh bool) ([]string, error) {
	if err := errors.ValidateID(initiativeID); err != nil {
		return nil, err
	}
	var ids []string
	err := c.Cached(ctx, "initiatives/"+initiativeID+"/features", refresh, &ids, func() error {
		var links []struct {
			ID string `json:"id"`
		}
		path := "/" + integrations.JoinURL("initiatives", initiativeID, "links", "features")
		if err := listAll(ctx, c, path, &links); err != nil {
			return err
		}
		ids = make([]string, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.ID)
		}
		return nil
	})
	return ids, err
}

// GetFeature fetches a single feature.
func (c *Client) GetFeature(ctx context.Context, id string) (*Feature, error) {
	if err := errors.ValidateID(id); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	err := httputil.RetryWithBackoff(ctx, func() error {
		return c.Get(ctx, integrations.JoinURL(c.baseURL, "features", id), &raw)
	})
	if err != nil {
		return nil, err
	}
	data, _, err := unwrap(raw)
	if err != nil {
		return nil, err
	}
	var f Feature
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode feature %s", id)
	}
	return &f, nil
}

// FetchHierarchy fetches products, components, features and initiatives
// concurrently and converts them into hierarchy entities.
func (c *Client) FetchHierarchy(ctx context.Context, refresh bool) (*Catalog, error) {
	var cat Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cat.Products, err = c.ListProducts(gctx, refresh)
		return err
	})
	g.Go(func() (err error) {
		cat.Components, err = c.ListComponents(gctx, refresh)
		return err
	})
	g.Go(func() (err error) {
		cat.Features, err = c.ListFeatures(gctx, refresh)
		return err
	})
	g.Go(func() (err error) {
		cat.Initiatives, err = c.ListInitiatives(gctx, refresh)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range cat.Initiatives {
		g.Go(func() error {
			ids, err := c.ListInitiativeFeatures(gctx, cat.Initiatives[i].ID, refresh)
			cat.Initiatives[i].FeatureIDs = ids
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// listAll follows links.next from path and appends every page's items to out.
func listAll[T any](ctx context.Context, c *Client, path string, out *[]T) error {
	*out = (*out)[:0]
	next := c.baseURL + path
	seen := make(map[string]bool)
	for page := 0; next != ""; page++ {
		if page >= maxPages || seen[next] {
			return errors.New(errors.ErrCodeInvalidFormat, "pagination did not terminate at %s", next)
		}
		seen[next] = true

		var raw json.RawMessage
		if err := c.Get(ctx, next, &raw); err != nil {
			return err
		}
		data, cursor, err := unwrap(raw)
		if err != nil {
			return err
		}
		items, err := decodeList[T](data)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", path)
		}
		*out = append(*out, items...)
		next = cursor
	}
	return nil
}

// unwrap strips the optional data envelope and returns the next-page cursor.
func unwrap(raw json.RawMessage) (json.RawMessage, string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return raw, "", nil
	}
	var env struct {
		Data  json.RawMessage `json:"data"`
		Links struct {
			Next string `json:"next"`
		} `json:"links"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("decode envelope: %w", err)
	}
	if env.Data == nil {
		return raw, "", nil
	}
	return env.Data, env.Links.Next, nil
}

// decodeList accepts an array, a single object or null.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []T
		err := json.Unmarshal(raw, &items)
		return items, err
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return []T{item}, nil
}
