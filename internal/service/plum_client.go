package service

import (
	"context"
	"fmt"
	"io"
)

// PlumClient downloads the OPM PLUM reporting CSV.
type PlumClient struct {
	http HTTPGetter
	url  string
}

func NewPlumClient(h HTTPGetter, url string) *PlumClient {
	return &PlumClient{http: h, url: url}
}

func (c *PlumClient) URL() string { return c.url }

// Open starts the download. The body is meant to be streamed into the parser.
func (c *PlumClient) Open(ctx context.Context) (io.ReadCloser, error) {
	body, err := c.http.Open(ctx, c.url, map[string]string{"Accept": "text/csv"})
	if err != nil {
		return nil, fmt.Errorf("failed to download PLUM data: %w", err)
	}
	return body, nil
}
