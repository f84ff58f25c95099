package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	idempotencyHeader = "X-Idempotency-Key"
	defaultQty        = int32(1)
)

type loadMode string

const (
	modeCreate      loadMode = "create"
	modeCreateItems loadMode = "create-items"
	modeLifecycle   loadMode = "lifecycle"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	token       string
	sku         string
	qty         int32
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type endpointReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt        time.Time                  `json:"started_at"`
	DurationSeconds  float64                    `json:"duration_seconds"`
	TotalScenarios   int64                      `json:"total_scenarios"`
	SuccessScenarios int64                      `json:"success_scenarios"`
	FailedScenarios  int64                      `json:"failed_scenarios"`
	ScenariosPerSec  float64                    `json:"scenarios_per_sec"`
	Endpoints        map[string]*endpointReport `json:"endpoints"`
}

// collector агрегирует статистику по endpoint'ам под мьютексом.
type collector struct {
	mu        sync.Mutex
	statuses  map[string]map[string]int64
	latencies map[string][]float64
	success   map[string]int64
	failed    map[string]int64
}

func newCollector() *collector {
	return &collector{
		statuses:  make(map[string]map[string]int64),
		latencies: make(map[string][]float64),
		success:   make(map[string]int64),
		failed:    make(map[string]int64),
	}
}

func (c *collector) record(endpoint string, status int, ok bool, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.statuses[endpoint] == nil {
		c.statuses[endpoint] = make(map[string]int64)
	}
	key := "error"
	if status > 0 {
		key = fmt.Sprintf("%d", status)
	}
	c.statuses[endpoint][key]++
	c.latencies[endpoint] = append(c.latencies[endpoint], float64(elapsed.Milliseconds()))
	if ok {
		c.success[endpoint]++
	} else {
		c.failed[endpoint]++
	}
}

func (c *collector) buildReport(startedAt time.Time, total, success, failed int64) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(startedAt).Seconds()
	result := report{
		StartedAt:        startedAt,
		DurationSeconds:  elapsed,
		TotalScenarios:   total,
		SuccessScenarios: success,
		FailedScenarios:  failed,
		Endpoints:        make(map[string]*endpointReport),
	}
	if elapsed > 0 {
		result.ScenariosPerSec = float64(total) / elapsed
	}

	for endpoint, latencies := range c.latencies {
		succeeded := c.success[endpoint]
		failures := c.failed[endpoint]
		calls := succeeded + failures

		entry := &endpointReport{
			Calls:     calls,
			Success:   succeeded,
			Failed:    failures,
			Statuses:  c.statuses[endpoint],
			LatencyMs: summarize(latencies),
		}
		if calls > 0 {
			entry.ErrorRate = float64(failures) / float64(calls)
		}
		result.Endpoints[endpoint] = entry
	}

	return result
}

func summarize(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// runner гоняет сценарии против REST API.
type runner struct {
	cfg     config
	client  *http.Client
	stats   *collector
	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64
}

func newRunner(cfg config) *runner {
	return &runner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.timeout},
		stats:  newCollector(),
	}
}

func (r *runner) run(ctx context.Context) report {
	startedAt := time.Now()

	if r.cfg.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.duration)
		defer cancel()
	}

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				if r.cfg.totalSet && r.total.Add(1) > int64(r.cfg.total) {
					r.total.Add(-1)
					return
				}
				if !r.cfg.totalSet {
					r.total.Add(1)
				}

				if err := r.scenario(ctx); err != nil {
					r.failed.Add(1)
				} else {
					r.success.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	return r.stats.buildReport(startedAt, r.total.Load(), r.success.Load(), r.failed.Load())
}

// scenario выполняет один проход выбранного режима.
func (r *runner) scenario(ctx context.Context) error {
	orderID, err := r.createOrder(ctx)
	if err != nil {
		return err
	}
	if r.cfg.mode == modeCreate {
		return nil
	}

	if err := r.addItem(ctx, orderID); err != nil {
		return err
	}
	if r.cfg.mode == modeCreateItems {
		return nil
	}

	return r.closeOrder(ctx, orderID)
}

func (r *runner) createOrder(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	headers := map[string]string{idempotencyHeader: uuid.NewString()}
	if err := r.call(ctx, http.MethodPost, "/api/v1/orders", nil, headers, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (r *runner) addItem(ctx context.Context, orderID string) error {
	body := map[string]any{
		"sku": r.cfg.sku,
		"qty": r.cfg.qty,
	}
	return r.call(ctx, http.MethodPost, "/api/v1/orders/"+orderID+"/items", body, nil, http.StatusOK, nil)
}

func (r *runner) closeOrder(ctx context.Context, orderID string) error {
	return r.call(ctx, http.MethodPost, "/api/v1/orders/"+orderID+"/close", nil, nil, http.StatusOK, nil)
}

func (r *runner) call(ctx context.Context, method, path string, body any, headers map[string]string, wantStatus int, out any) error {
	endpoint := method + " " + routeLabel(path)

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = data
	}

	req, err := http.NewRequestWithContext(ctx, method, r.cfg.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.token)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		r.stats.record(endpoint, 0, false, elapsed)
		return err
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == wantStatus
	r.stats.record(endpoint, resp.StatusCode, ok, elapsed)
	if !ok {
		return fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", endpoint, err)
		}
	}
	return nil
}

// routeLabel сворачивает id в пути, чтобы не плодить endpoint'ы в отчёте.
func routeLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if _, err := uuid.Parse(part); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func parseFlags(args []string) (config, error) {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)

	cfg := config{}
	var mode string
	var qty int

	fs.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "base URL of the order service")
	fs.IntVar(&cfg.total, "total", 100, "total number of scenarios (ignored when -duration is set)")
	fs.DurationVar(&cfg.duration, "duration", 0, "run for a fixed duration instead of a fixed total")
	fs.IntVar(&cfg.concurrency, "concurrency", 4, "number of parallel workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&mode, "mode", string(modeCreate), "scenario mode: create|create-items|lifecycle")
	fs.StringVar(&cfg.token, "token", "", "bearer token for authenticated requests")
	fs.StringVar(&cfg.sku, "sku", "SKU001", "product SKU for item scenarios")
	fs.IntVar(&qty, "qty", int(defaultQty), "item quantity for item scenarios")
	fs.StringVar(&cfg.outputPath, "output", "", "write JSON report to file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg.mode = loadMode(strings.ToLower(strings.TrimSpace(mode)))
	switch cfg.mode {
	case modeCreate, modeCreateItems, modeLifecycle:
	default:
		return config{}, fmt.Errorf("unsupported mode: %s", mode)
	}

	if cfg.concurrency <= 0 {
		return config{}, fmt.Errorf("concurrency must be positive, got %d", cfg.concurrency)
	}
	if qty <= 0 {
		return config{}, fmt.Errorf("qty must be positive, got %d", qty)
	}
	cfg.qty = int32(qty)

	cfg.totalSet = cfg.duration == 0
	if cfg.totalSet && cfg.total <= 0 {
		return config{}, fmt.Errorf("total must be positive, got %d", cfg.total)
	}

	cfg.baseURL = strings.TrimRight(cfg.baseURL, "/")
	return cfg, nil
}

func writeReport(result report, outputPath string) error {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	if outputPath == "" {
		fmt.Println(string(payload))
		return nil
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(outputPath, append(payload, '\n'), 0o644)
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	result := newRunner(cfg).run(context.Background())

	if err := writeReport(result, cfg.outputPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}
