// Package fetch talks to the sync backend and implements the download stages
// of the pipeline: each stage walks one paginated listing and stores what it
// receives.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"syncworker/internal/models"
	"syncworker/internal/pipeline"
	"syncworker/internal/store"
)

// maxPages guards against a backend that never reports the last page.
const maxPages = 10000

// Options configures the backend client.
type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
}

// Client fetches processes, suppliers and conceptions from the sync backend.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	store   store.RecordStore
}

var _ pipeline.Fetcher = (*Client)(nil)

type pageResponse struct {
	Items      []json.RawMessage `json:"items"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

func New(opts Options, rs store.RecordStore) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("sync backend base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse sync backend URL: %w", err)
	}
	if rs == nil {
		return nil, errors.New("record store cannot be nil")
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Client{
		base:    base,
		token:   opts.Token,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		store:   rs,
	}, nil
}

func (c *Client) FetchProcesses(ctx context.Context, page *pipeline.PageContext) (bool, error) {
	return c.fetchAll(ctx, models.CategoryProcesses, page)
}

func (c *Client) FetchSuppliers(ctx context.Context, page *pipeline.PageContext) (bool, error) {
	return c.fetchAll(ctx, models.CategorySuppliers, page)
}

func (c *Client) FetchConceptions(ctx context.Context, page *pipeline.PageContext) (bool, error) {
	return c.fetchAll(ctx, models.CategoryConceptions, page)
}

// fetchAll walks every page of category. Transport and decode problems make
// the stage fail (false); a store error is returned as a fault.
func (c *Client) fetchAll(ctx context.Context, category string, page *pipeline.PageContext) (bool, error) {
	logger := log.WithField("category", category)
	for p := 1; p <= maxPages; p++ {
		page.Page = p
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}

		resp, err := c.getPage(ctx, category, p)
		if err != nil {
			logger.WithError(err).WithField("page", p).Warn("failed to fetch page")
			return false, nil
		}

		records := make([]models.Record, 0, len(resp.Items))
		for _, item := range resp.Items {
			id, err := recordID(item)
			if err != nil {
				logger.WithError(err).WithField("page", p).Warn("skipping record without id")
				continue
			}
			records = append(records, models.Record{ID: id, Data: item})
		}
		if err := c.store.SaveRecords(ctx, category, records); err != nil {
			return false, fmt.Errorf("save %s page %d: %w", category, p, err)
		}
		logger.WithFields(log.Fields{"page": p, "total_pages": resp.TotalPages, "records": len(records)}).Debug("page stored")

		if p >= resp.TotalPages {
			return true, nil
		}
	}
	logger.Warnf("gave up after %d pages", maxPages)
	return false, nil
}

func (c *Client) getPage(ctx context.Context, category string, p int) (*pageResponse, error) {
	u := c.base.JoinPath(category)
	q := u.Query()
	q.Set("page", strconv.Itoa(p))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("GET %s: %s: %s", u.Path, res.Status, body)
	}

	var out pageResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s page %d: %w", category, p, err)
	}
	return &out, nil
}

// recordID extracts the "id" field, accepting numbers or strings.
func recordID(item json.RawMessage) (string, error) {
	var v struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(item, &v); err != nil {
		return "", err
	}
	if len(v.ID) == 0 || string(v.ID) == "null" {
		return "", errors.New("missing id")
	}
	var s string
	if err := json.Unmarshal(v.ID, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v.ID, &n); err != nil {
		return "", fmt.Errorf("unsupported id %s", v.ID)
	}
	return n.String(), nil
}
