// Package shopapi fetches report rows from the shop management REST API.
package shopapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/shopreports/internal/ledger"
	"github.com/odyssey-erp/shopreports/internal/reports"
)

// ErrUnauthorized indicates the API rejected the configured token.
var ErrUnauthorized = errors.New("shopapi: unauthorized")

const maxSequentialPages = 1000

// Config controls the client.
type Config struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	PageSize    int
	Concurrency int
}

// Client implements reports.Source over the REST API.
type Client struct {
	baseURL     string
	token       string
	pageSize    int
	concurrency int
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ reports.Source = (*Client)(nil)

// NewClient constructs a client with sane defaults for unset values.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		pageSize:    cfg.PageSize,
		concurrency: cfg.Concurrency,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

// StatusError is returned for non-success API responses.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shopapi: %s returned status %d: %s", e.Path, e.Code, e.Body)
}

// envelope is one page of a list response. Different endpoints carry the rows
// under items, transactions or data. The page totals are informational only.
type envelope[T any] struct {
	Items        []T           `json:"items"`
	Transactions []T           `json:"transactions"`
	Data         []T           `json:"data"`
	Total        ledger.Number `json:"total"`
	TotalAmount  ledger.Number `json:"totalAmount"`
}

func (e envelope[T]) rows() []T {
	switch {
	case e.Items != nil:
		return e.Items
	case e.Transactions != nil:
		return e.Transactions
	}
	return e.Data
}

// Transactions implements reports.Source.
func (c *Client) Transactions(ctx context.Context, q reports.Query) ([]ledger.RawTransaction, error) {
	return fetchAll[ledger.RawTransaction](ctx, c, shopPath(q, "transactions"), q)
}

// StockTrack implements reports.Source.
func (c *Client) StockTrack(ctx context.Context, q reports.Query) ([]ledger.RawStockTrack, error) {
	return fetchAll[ledger.RawStockTrack](ctx, c, shopPath(q, "stock-track"), q)
}

// Expenses implements reports.Source.
func (c *Client) Expenses(ctx context.Context, q reports.Query) ([]ledger.RawExpense, error) {
	return fetchAll[ledger.RawExpense](ctx, c, shopPath(q, "expenses"), q)
}

// Stock implements reports.Source.
func (c *Client) Stock(ctx context.Context, q reports.Query) ([]ledger.RawStock, error) {
	return fetchAll[ledger.RawStock](ctx, c, shopPath(q, "inventories"), q)
}

func shopPath(q reports.Query, resource string) string {
	return "/shops/" + strconv.FormatInt(q.ShopID, 10) + "/" + resource
}

// fetchAll reads the first page to learn the total and the page size the
// upstream actually honours, then fetches the remaining pages concurrently
// and concatenates them in page order. Without a total it walks pages until a
// short page.
func fetchAll[T any](ctx context.Context, c *Client, path string, q reports.Query) ([]T, error) {
	first, err := fetchPage[T](ctx, c, path, q, 1)
	if err != nil {
		return nil, err
	}
	rows := first.rows()
	if !first.Total.Set || first.Total.Malformed {
		return walkPages[T](ctx, c, path, q, rows)
	}

	total := int(first.Total.Value)
	pageSize := c.pageSize
	if n := len(rows); n > 0 && n < pageSize && n < total {
		// The upstream caps limit below the requested page size.
		pageSize = n
	}
	pages := (total + pageSize - 1) / pageSize
	if pages <= 1 {
		return rows, nil
	}

	results := make([][]T, pages)
	results[0] = rows
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for page := 2; page <= pages; page++ {
		page := page
		g.Go(func() error {
			env, err := fetchPage[T](gctx, c, path, q, page)
			if err != nil {
				return err
			}
			results[page-1] = env.rows()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]T, 0, total)
	for _, pageRows := range results {
		all = append(all, pageRows...)
	}
	if len(all) != total {
		c.logger.Warn("shop api total mismatch", slog.String("path", path), slog.Int("total", total), slog.Int("rows", len(all)))
	}
	return all, nil
}

func walkPages[T any](ctx context.Context, c *Client, path string, q reports.Query, rows []T) ([]T, error) {
	last := len(rows)
	for page := 2; last >= c.pageSize && page <= maxSequentialPages; page++ {
		env, err := fetchPage[T](ctx, c, path, q, page)
		if err != nil {
			return nil, err
		}
		next := env.rows()
		rows = append(rows, next...)
		last = len(next)
	}
	return rows, nil
}

func fetchPage[T any](ctx context.Context, c *Client, path string, q reports.Query, page int) (envelope[T], error) {
	var env envelope[T]
	endpoint := c.baseURL + path + "?" + encodeQuery(q, page, c.pageSize).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return env, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return env, fmt.Errorf("shopapi: get %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return env, ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return env, &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env, fmt.Errorf("shopapi: decode %s page %d: %w", path, page, err)
	}
	return env, nil
}

func encodeQuery(q reports.Query, page, limit int) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	if q.SearchBy != "" {
		v.Set("searchBy", q.SearchBy)
	}
	if !q.From.IsZero() {
		v.Set("startDate", q.From.Format("2006-01-02"))
	}
	if !q.To.IsZero() {
		v.Set("endDate", q.To.Format("2006-01-02"))
	}
	if q.CustomerID > 0 {
		v.Set("customerId", strconv.FormatInt(q.CustomerID, 10))
	}
	if q.VendorID > 0 {
		v.Set("vendorId", strconv.FormatInt(q.VendorID, 10))
	}
	if len(q.IDs) > 0 {
		ids := make([]string, 0, len(q.IDs))
		for _, id := range q.IDs {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		v.Set("ids", strings.Join(ids, ","))
	}
	if len(q.TransactionTypes) > 0 {
		v.Set("transactionTypes", strings.Join(q.TransactionTypes, ","))
	}
	return v
}
