// Package gitlab is a minimal GitLab REST client covering the endpoints the
// synchronization driver needs: open merge requests, single merge requests,
// branch tips and the bounded version-history endpoint.
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the remote reports 404 for a resource, e.g. a
// merge request that has been deleted.
var ErrNotFound = errors.New("not found")

// Client talks to one GitLab project.
type Client struct {
	baseURL   string
	token     string
	projectID int64
	httpCli   *http.Client
}

// NewClient builds a client for the project. host may be a bare hostname or
// a full URL; a missing scheme defaults to https.
func NewClient(host, token string, projectID int64) *Client {
	base := strings.TrimRight(host, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Client{
		baseURL:   base + "/api/v4",
		token:     token,
		projectID: projectID,
		httpCli:   &http.Client{Timeout: 60 * time.Second},
	}
}

// ListOpenMergeRequests fetches every open merge request of the project,
// following pagination.
func (c *Client) ListOpenMergeRequests(ctx context.Context) ([]MergeRequest, error) {
	var all []MergeRequest
	page := "1"
	for page != "" {
		path := fmt.Sprintf("/projects/%d/merge_requests", c.projectID)
		query := url.Values{
			"state":    {"opened"},
			"per_page": {"100"},
			"page":     {page},
		}
		var batch []MergeRequest
		next, err := c.get(ctx, path, query, &batch)
		if err != nil {
			return nil, fmt.Errorf("list open merge requests: %w", err)
		}
		all = append(all, batch...)
		page = next
	}
	return all, nil
}

// MergeRequestByIID fetches a single merge request. A deleted request yields
// ErrNotFound.
func (c *Client) MergeRequestByIID(ctx context.Context, iid int64) (*MergeRequest, error) {
	path := fmt.Sprintf("/projects/%d/merge_requests/%d", c.projectID, iid)
	var mr MergeRequest
	if _, err := c.get(ctx, path, nil, &mr); err != nil {
		return nil, fmt.Errorf("fetch merge request !%d: %w", iid, err)
	}
	return &mr, nil
}

// BranchTip returns the current head commit sha of a branch, straight from
// the remote so a stale local copy cannot skew merge-base computation.
func (c *Client) BranchTip(ctx context.Context, branch string) (string, error) {
	path := fmt.Sprintf("/projects/%d/repository/branches/%s", c.projectID, url.PathEscape(branch))
	var resp struct {
		Commit struct {
			ID string `json:"id"`
		} `json:"commit"`
	}
	if _, err := c.get(ctx, path, nil, &resp); err != nil {
		return "", fmt.Errorf("fetch tip of branch %s: %w", branch, err)
	}
	if resp.Commit.ID == "" {
		return "", fmt.Errorf("branch %s has no commit", branch)
	}
	return resp.Commit.ID, nil
}

// Versions fetches the merge request's recent version history, newest first.
func (c *Client) Versions(ctx context.Context, iid int64) ([]DiffVersion, error) {
	path := fmt.Sprintf("/projects/%d/merge_requests/%d/versions", c.projectID, iid)
	var versions []DiffVersion
	if _, err := c.get(ctx, path, nil, &versions); err != nil {
		return nil, fmt.Errorf("fetch versions of !%d: %w", iid, err)
	}
	return versions, nil
}

// get performs one GET request and decodes the JSON response into out. It
// returns the X-Next-Page header value for paginated endpoints.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (string, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("authentication failed (status %d): %s", resp.StatusCode, snippet(body))
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("gitlab API error (status %d): %s", resp.StatusCode, snippet(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	next := resp.Header.Get("X-Next-Page")
	if _, err := strconv.Atoi(next); err != nil {
		next = ""
	}
	return next, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
