package azuredevops

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/httputil"
	"github.com/matzehuels/planbridge/pkg/integrations"
)

// DefaultBaseURL is the Azure DevOps Services endpoint.
const DefaultBaseURL = "https://dev.azure.com"

const (
	apiVersion = "7.1"
	// batchSize is the maximum number of ids the work items endpoint accepts.
	batchSize = 200
)

// Client provides access to the work items of one Azure DevOps project.
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL      string
	organization string
	project      string
}

// NewClient creates a client for organization/project authenticated with a
// personal access token.
func NewClient(backend cache.Cache, organization, project, pat string, cacheTTL time.Duration) (*Client, error) {
	if err := errors.ValidateOrganization(organization); err != nil {
		return nil, err
	}
	if strings.TrimSpace(project) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "project cannot be empty")
	}
	return &Client{
		Client:       integrations.NewClient(backend, "azuredevops:"+organization, cacheTTL, authHeaders(pat)),
		baseURL:      DefaultBaseURL,
		organization: organization,
		project:      project,
	}, nil
}

// SetBaseURL points the client at a different server, e.g. an on-premises
// Azure DevOps Server collection URL.
func (c *Client) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func authHeaders(pat string) map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(":" + pat))
	return map[string]string{
		"Authorization": "Basic " + token,
		"Accept":        integrations.ContentJSON,
	}
}

func (c *Client) projectURL(segments ...string) string {
	return integrations.JoinURL(c.baseURL, append([]string{c.organization, c.project, "_apis", "wit"}, segments...)...)
}

// WorkItemURL returns the API URL of a work item, as used in relations.
func (c *Client) WorkItemURL(id int) string {
	return integrations.JoinURL(c.baseURL, c.organization, "_apis", "wit", "workItems", strconv.Itoa(id))
}

// QueryWorkItems runs a WIQL query and returns the matching work item ids.
func (c *Client) QueryWorkItems(ctx context.Context, wiql string) ([]int, error) {
	var resp struct {
		WorkItems []struct {
			ID int `json:"id"`
		} `json:"workItems"`
	}
	url := c.projectURL("wiql") + "?api-version=" + apiVersion
	body := map[string]string{"query": wiql}
	err := httputil.RetryWithBackoff(ctx, func() error {
		return c.Post(ctx, url, body, &resp)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(resp.WorkItems))
	for _, w := range resp.WorkItems {
		ids = append(ids, w.ID)
	}
	return ids, nil
}

// GetWorkItems fetches work items with their relations. Ids are requested
// in batches and the result keeps the order of ids.
func (c *Client) GetWorkItems(ctx context.Context, ids []int) ([]WorkItem, error) {
	batches := make([][]WorkItem, (len(ids)+batchSize-1)/batchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range batches {
		chunk := ids[i*batchSize : min((i+1)*batchSize, len(ids))]
		g.Go(func() error {
			items, err := c.getBatch(ctx, chunk)
			batches[i] = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]WorkItem, 0, len(ids))
	for _, b := range batches {
		items = append(items, b...)
	}
	return items, nil
}

func (c *Client) getBatch(ctx context.Context, ids []int) ([]WorkItem, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	url := fmt.Sprintf("%s?ids=%s&$expand=relations&api-version=%s",
		c.projectURL("workitems"), strings.Join(parts, ","), apiVersion)

	var resp struct {
		Value []WorkItem `json:"value"`
	}
	err := httputil.RetryWithBackoff(ctx, func() error {
		return c.Get(ctx, url, &resp)
	})
	return resp.Value, err
}

// CreateWorkItem creates a work item of the given type, e.g. "User Story".
func (c *Client) CreateWorkItem(ctx context.Context, workItemType string, ops []PatchOp) (*WorkItem, error) {
	if strings.TrimSpace(workItemType) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "work item type cannot be empty")
	}
	url := c.projectURL("workitems", "$"+workItemType) + "?api-version=" + apiVersion
	var item WorkItem
	if err := c.Write(ctx, http.MethodPost, url, integrations.ContentJSONPatch, ops, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateWorkItem applies ops to an existing work item.
func (c *Client) UpdateWorkItem(ctx context.Context, id int, ops []PatchOp) (*WorkItem, error) {
	if id <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid work item id %d", id)
	}
	url := c.projectURL("workitems", strconv.Itoa(id)) + "?api-version=" + apiVersion
	var item WorkItem
	if err := c.Write(ctx, http.MethodPatch, url, integrations.ContentJSONPatch, ops, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
