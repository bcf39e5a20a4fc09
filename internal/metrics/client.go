package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/localnerve/jam-build-formsdb/internal/types"
)

const (
	catalogTTL = 60 * time.Second
	queryTTL   = 30 * time.Second

	catalogCacheKey = "metrics:catalog"
	queryCachePfx   = "metrics:query:"
)

// CatalogItem describes one metric the backend can serve.
type CatalogItem struct {
	Key   string `json:"key"`
	Unit  string `json:"unit"`
	Label string `json:"label"`
}

// Point is one time bucket of a series. Bucket is epoch milliseconds; some
// backend versions send it as a string.
type Point struct {
	Bucket   types.FlexInt64 `json:"bucket"`
	Value    float64         `json:"value"`
	EntityID string          `json:"entityId,omitempty"`
}

// QueryInput is the query body sent to the backend. Start and End are epoch
// milliseconds; zero means unbounded. An empty Bucket asks for a single
// un-bucketed aggregate.
type QueryInput struct {
	MetricKey       string            `json:"metricKey"`
	Start           int64             `json:"start,omitempty"`
	End             int64             `json:"end,omitempty"`
	Bucket          string            `json:"bucket,omitempty"`
	Agg             string            `json:"agg"`
	EntityKind      string            `json:"entityKind"`
	EntityIDs       []string          `json:"entityIds"`
	Dimensions      map[string]string `json:"dimensions,omitempty"`
	GroupByEntityID bool              `json:"groupByEntityId,omitempty"`
}

type queryResponse struct {
	Data  []Point `json:"data"`
	Error string  `json:"error,omitempty"`
}

type catalogResponse struct {
	Items []CatalogItem `json:"items"`
}

// call is one in-flight fetch shared by every concurrent caller of the same
// cache key.
type call struct {
	wg  sync.WaitGroup
	val []byte
	err error
}

// Client sits in front of the metrics query backend. It coalesces identical
// in-flight requests, caches results with per-kind TTLs, and derives
// cumulative and multi-entity aggregations the backend does not provide.
type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache

	mu       sync.Mutex
	inflight map[string]*call

	now func() time.Time
}

// NewClient builds a client against baseURL using the given cache backend.
func NewClient(baseURL string, cache Cache) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		cache:    cache,
		inflight: make(map[string]*call),
		now:      time.Now,
	}
}

// Catalog returns the metric catalog keyed by metric key. Failures yield an
// empty map: the catalog decorates panels, it never blocks them.
func (c *Client) Catalog(ctx context.Context) map[string]CatalogItem {
	raw, err := c.cachedFetch(ctx, catalogCacheKey, catalogTTL, func() ([]byte, error) {
		return c.get(ctx, "/catalog")
	})
	if err != nil {
		return map[string]CatalogItem{}
	}

	var res catalogResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return map[string]CatalogItem{}
	}

	items := make(map[string]CatalogItem, len(res.Items))
	for _, item := range res.Items {
		items[item.Key] = item
	}
	return items
}

// Query runs one metrics query through the cache and coalescing layers.
func (c *Client) Query(ctx context.Context, input QueryInput) ([]Point, error) {
	key := queryCachePfx + StableSerialize(input)

	raw, err := c.cachedFetch(ctx, key, queryTTL, func() ([]byte, error) {
		body, err := c.post(ctx, "/query", input)
		if err != nil {
			return nil, err
		}
		// A 200 carrying a logical error must not enter the cache, only
		// resolved series do.
		var res queryResponse
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, fmt.Errorf("metrics response decode: %w", err)
		}
		if res.Error != "" {
			return nil, fmt.Errorf("metrics backend: %s", res.Error)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	var res queryResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("metrics response decode: %w", err)
	}
	return res.Data, nil
}

// Cumulative modes.
const (
	CumulativeRange   = "range"
	CumulativeAllTime = "all_time"
)

// Cumulative turns a bucketed series into a running total. In range mode the
// total starts at zero at the window's first bucket. In all_time mode it
// starts at the sum of everything between the epoch and the window start,
// fetched with a separate un-bucketed sum query; if that baseline fetch
// fails the total falls back to starting at zero.
func (c *Client) Cumulative(ctx context.Context, input QueryInput, mode string) ([]Point, error) {
	series, err := c.Query(ctx, input)
	if err != nil {
		return nil, err
	}

	var baseline float64
	if mode == CumulativeAllTime && input.Start > Epoch.UnixMilli() {
		baselineInput := input
		baselineInput.Start = Epoch.UnixMilli()
		baselineInput.End = input.Start - 1
		baselineInput.Bucket = ""
		baselineInput.Agg = "sum"
		baselineInput.GroupByEntityID = false

		if points, err := c.Query(ctx, baselineInput); err == nil {
			for _, p := range points {
				baseline += p.Value
			}
		}
	}

	running := baseline
	out := make([]Point, len(series))
	for i, p := range series {
		running += p.Value
		out[i] = Point{Bucket: p.Bucket, Value: running}
	}
	return out, nil
}

// CurrentValue resolves the "current value" display for a set of entities.
// A pre-aggregated last over multiple entities would be the last value of
// whichever entity reported most recently, so with more than one entity the
// query is grouped per entity and the per-entity last values are summed.
func (c *Client) CurrentValue(ctx context.Context, input QueryInput) (float64, error) {
	if input.Agg == "last" && len(input.EntityIDs) > 1 {
		grouped := input
		grouped.GroupByEntityID = true

		points, err := c.Query(ctx, grouped)
		if err != nil {
			return 0, err
		}

		lastByEntity := make(map[string]Point, len(input.EntityIDs))
		for _, p := range points {
			prev, ok := lastByEntity[p.EntityID]
			if !ok || p.Bucket.Int64() >= prev.Bucket.Int64() {
				lastByEntity[p.EntityID] = p
			}
		}

		var sum float64
		for _, p := range lastByEntity {
			sum += p.Value
		}
		return sum, nil
	}

	points, err := c.Query(ctx, input)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	return points[len(points)-1].Value, nil
}

// cachedFetch serves key from cache, otherwise runs fetch exactly once no
// matter how many goroutines ask concurrently. The in-flight slot is removed
// in a deferred block so a failed fetch cannot poison the key.
func (c *Client) cachedFetch(ctx context.Context, key string, ttl time.Duration, fetch func() ([]byte, error)) ([]byte, error) {
	if value, ok := c.cache.Get(ctx, key); ok {
		return value, nil
	}

	c.mu.Lock()
	if existing, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		existing.wg.Wait()
		return existing.val, existing.err
	}

	cl := &call{}
	cl.wg.Add(1)
	c.inflight[key] = cl
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		cl.wg.Done()
	}()

	cl.val, cl.err = fetch()
	if cl.err == nil {
		c.cache.Set(ctx, key, cl.val, ttl)
	}
	return cl.val, cl.err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics backend status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
