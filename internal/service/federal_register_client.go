package service

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var documentFields = []string{
	"document_number",
	"title",
	"abstract",
	"type",
	"publication_date",
	"effective_on",
	"signing_date",
	"agencies",
	"cfr_references",
	"docket_ids",
	"regulation_id_number",
	"html_url",
	"pdf_url",
}

// DocumentQuery selects documents published on or after Since.
type DocumentQuery struct {
	Since time.Time
	Types []string
}

// FederalRegisterClient talks to the Federal Register v1 API.
type FederalRegisterClient struct {
	http     HTTPGetter
	baseURL  string
	pageSize int
	maxPages int
	log      *logrus.Entry
}

func NewFederalRegisterClient(h HTTPGetter, baseURL string, pageSize, maxPages int, logger *logrus.Logger) *FederalRegisterClient {
	return &FederalRegisterClient{
		http:     h,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		maxPages: maxPages,
		log:      logger.WithField("component", "federal_register"),
	}
}

// Agencies returns the raw /agencies listing.
func (c *FederalRegisterClient) Agencies(ctx context.Context) ([]byte, error) {
	body, err := c.http.GetBytes(ctx, c.baseURL+"/agencies", map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agencies: %w", err)
	}
	return body, nil
}

func (c *FederalRegisterClient) documentsURL(q DocumentQuery, page int) string {
	v := url.Values{}
	v.Set("conditions[publication_date][gte]", q.Since.Format(frDateLayout))
	for _, t := range q.Types {
		v.Add("conditions[type][]", t)
	}
	for _, f := range documentFields {
		v.Add("fields[]", f)
	}
	v.Set("order", "oldest")
	v.Set("per_page", strconv.Itoa(c.pageSize))
	v.Set("page", strconv.Itoa(page))
	return c.baseURL + "/documents.json?" + v.Encode()
}

// Documents yields raw documents matching q, oldest first. Pages are
// requested as the sequence is consumed. A yielded error ends the sequence.
func (c *FederalRegisterClient) Documents(ctx context.Context, q DocumentQuery) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		for page := 1; ; page++ {
			body, err := c.http.GetBytes(ctx, c.documentsURL(q, page), map[string]string{"Accept": "application/json"})
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch documents page %d: %w", page, err))
				return
			}
			var p documentsPage
			if err := json.Unmarshal(body, &p); err != nil {
				yield(nil, fmt.Errorf("failed to decode documents page %d: %w", page, err))
				return
			}

			c.log.WithFields(logrus.Fields{
				"page":        page,
				"total_pages": p.TotalPages,
				"count":       p.Count,
				"results":     len(p.Results),
			}).Debug("Fetched documents page")

			for _, raw := range p.Results {
				if !yield(raw, nil) {
					return
				}
			}

			if len(p.Results) == 0 || p.NextPageURL == "" || page >= p.TotalPages {
				return
			}
			if page >= c.maxPages {
				c.log.WithFields(logrus.Fields{
					"max_pages":   c.maxPages,
					"total_pages": p.TotalPages,
				}).Warn("Stopped at page cap, remaining documents are picked up next run")
				return
			}
		}
	}
}
