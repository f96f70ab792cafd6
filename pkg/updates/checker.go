package updates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modhost/pkg/async"
	"github.com/platinummonkey/modhost/pkg/host"
	"github.com/platinummonkey/modhost/pkg/observability"
	"github.com/platinummonkey/modhost/pkg/plugins"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultCacheTTL  = 6 * time.Hour
	defaultBatchSize = 50
	defaultWorkers   = 2
	maxCacheEntries  = 4096
	searchPath       = "/mods"
)

// ErrNoServer is returned when no update server URL is configured.
var ErrNoServer = errors.New("no update server configured")

// Request asks the update server about one installed mod.
type Request struct {
	ID               string   `json:"id"`
	InstalledVersion string   `json:"installedVersion"`
	UpdateKeys       []string `json:"updateKeys"`
}

// Suggestion is a newer release the server knows about.
type Suggestion struct {
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
}

// Result is the server's answer for one mod.
type Result struct {
	ID              string      `json:"id"`
	SuggestedUpdate *Suggestion `json:"suggestedUpdate,omitempty"`
	Errors          []string    `json:"errors,omitempty"`
}

type searchRequest struct {
	Mods []Request `json:"mods"`
}

// Options configures a Checker.
type Options struct {
	ServerURL  string
	Timeout    time.Duration
	CacheTTL   time.Duration
	BatchSize  int
	Workers    int
	Suppress   []string
	HTTPClient *http.Client
	Metrics    *observability.Metrics
}

// Checker asks the update server for newer mod versions and caches the
// answers. It never modifies mod metadata.
type Checker struct {
	opts     Options
	client   *http.Client
	logger   *logrus.Logger
	suppress map[string]bool
	results  *lru.LRU[string, Result]
}

// NewChecker creates a Checker.
func NewChecker(opts Options, logger *logrus.Logger) *Checker {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	suppress := make(map[string]bool, len(opts.Suppress))
	for _, id := range opts.Suppress {
		suppress[plugins.NormalizeID(id)] = true
	}

	return &Checker{
		opts:     opts,
		client:   client,
		logger:   logger,
		suppress: suppress,
		results:  lru.NewLRU[string, Result](maxCacheEntries, nil, opts.CacheTTL),
	}
}

// Requests builds the request list for mods, skipping suppressed mods and
// mods without update keys.
func (c *Checker) Requests(mods []*plugins.Metadata) []Request {
	var requests []Request
	for _, meta := range mods {
		if meta.Manifest == nil || c.suppress[plugins.NormalizeID(meta.ID())] || !meta.HasUpdateKeys() {
			continue
		}
		var keys []string
		for _, key := range meta.Manifest.UpdateKeys {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
		requests = append(requests, Request{
			ID:               meta.ID(),
			InstalledVersion: meta.Manifest.Version,
			UpdateKeys:       keys,
		})
	}
	return requests
}

// Check queries the server for every eligible mod and caches the results.
func (c *Checker) Check(ctx context.Context, mods []*plugins.Metadata) error {
	if c.opts.ServerURL == "" {
		return ErrNoServer
	}
	requests := c.Requests(mods)
	if len(requests) == 0 {
		return nil
	}

	var batches [][]Request
	for start := 0; start < len(requests); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(requests))
		batches = append(batches, requests[start:end])
	}

	errs := async.Batch(ctx, c.logger, batches, c.opts.Workers, "update check", c.opts.Timeout,
		func(ctx context.Context, batch []Request) error {
			return c.search(ctx, batch)
		})
	return errors.Join(errs...)
}

func (c *Checker) search(ctx context.Context, batch []Request) (err error) {
	start := time.Now()
	defer func() {
		if c.opts.Metrics != nil {
			result := "success"
			if err != nil {
				result = "error"
			}
			c.opts.Metrics.RecordUpdateCheck(result, time.Since(start))
		}
	}()

	body, err := sonic.Marshal(searchRequest{Mods: batch})
	if err != nil {
		return fmt.Errorf("failed to encode update request: %w", err)
	}

	url := strings.TrimRight(c.opts.ServerURL, "/") + searchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update server request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read update response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var results []Result
	if err := sonic.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("failed to parse update response: %w", err)
	}

	for _, result := range results {
		if result.ID == "" {
			continue
		}
		c.results.Add(plugins.NormalizeID(result.ID), result)
		for _, msg := range result.Errors {
			c.logger.WithField("mod", result.ID).Tracef("Update check: %s", msg)
		}
	}
	return nil
}

// Result returns the cached answer for id.
func (c *Checker) Result(id string) (Result, bool) {
	return c.results.Get(plugins.NormalizeID(id))
}

// Lookup returns the cached update suggestion for id, or nil.
func (c *Checker) Lookup(id string) *host.UpdateInfo {
	result, ok := c.Result(id)
	if !ok || result.SuggestedUpdate == nil {
		return nil
	}
	return &host.UpdateInfo{Version: result.SuggestedUpdate.Version, URL: result.SuggestedUpdate.URL}
}

// CheckInBackground starts a check without blocking. The returned channel
// closes when it finishes; failures are only logged.
func (c *Checker) CheckInBackground(ctx context.Context, mods []*plugins.Metadata) <-chan struct{} {
	return async.SafeGo(ctx, c.logger, c.opts.Timeout*time.Duration(len(mods)/c.opts.BatchSize+1), "update check",
		func(ctx context.Context) error {
			if err := c.Check(ctx, mods); err != nil {
				return err
			}
			c.logAvailable(mods)
			return nil
		})
}

func (c *Checker) logAvailable(mods []*plugins.Metadata) {
	var found int
	for _, meta := range mods {
		info := c.Lookup(meta.ID())
		if info == nil {
			continue
		}
		if found == 0 {
			c.logger.Info("You can update mods:")
		}
		found++
		c.logger.Infof("   %s %s: %s", meta.DisplayName, info.Version, info.URL)
	}
	if found == 0 {
		c.logger.Debug("All mods are up to date.")
	}
}

// Schedule re-runs the check on a cron spec until ctx is done. mods is
// called on every run.
func (c *Checker) Schedule(ctx context.Context, spec string, mods func() []*plugins.Metadata) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithLogger(cron.PrintfLogger(c.logger)))
	_, err := scheduler.AddFunc(spec, func() {
		c.logger.Debug("Running scheduled update check")
		<-c.CheckInBackground(ctx, mods())
	})
	if err != nil {
		return nil, fmt.Errorf("invalid update schedule %q: %w", spec, err)
	}
	scheduler.Start()

	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
	}()
	return scheduler, nil
}
