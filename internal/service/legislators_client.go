package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// LegislatorsClient reads the unitedstates/congress-legislators repository.
type LegislatorsClient struct {
	http    HTTPGetter
	rawBase string
	apiBase string
	branch  string
}

func NewLegislatorsClient(h HTTPGetter, rawBase, apiBase, branch string) *LegislatorsClient {
	return &LegislatorsClient{
		http:    h,
		rawBase: strings.TrimRight(rawBase, "/"),
		apiBase: strings.TrimRight(apiBase, "/"),
		branch:  branch,
	}
}

// LatestCommit returns the SHA at the head of the configured branch.
func (c *LegislatorsClient) LatestCommit(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/commits/%s", c.apiBase, c.branch)
	body, err := c.http.GetBytes(ctx, url, map[string]string{"Accept": "application/vnd.github+json"})
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest commit: %w", err)
	}

	var commit struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &commit); err != nil {
		return "", fmt.Errorf("failed to decode commit response: %w", err)
	}
	if commit.SHA == "" {
		return "", fmt.Errorf("commit response for %s has no sha", c.branch)
	}
	return commit.SHA, nil
}

// Open downloads file as of ref. An empty ref reads the branch head.
func (c *LegislatorsClient) Open(ctx context.Context, ref, file string) (io.ReadCloser, error) {
	if ref == "" {
		ref = c.branch
	}
	url := fmt.Sprintf("%s/%s/%s", c.rawBase, ref, file)
	body, err := c.http.Open(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", file, err)
	}
	return body, nil
}
