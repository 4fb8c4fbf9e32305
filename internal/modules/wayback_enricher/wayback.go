// Package waybackenricher submits URLs to the Wayback Machine.
package waybackenricher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	"github.com/nao1215/autoarchiver/internal/netutil"
)

// Name is the status origin of successful extractions.
const Name = "wayback"

// Attribute keys.
const (
	KeyWayback      = "wayback"
	KeyCheckWayback = "check wayback"
)

// Job status values reported by the status endpoint.
const (
	statusSuccess = "success"
	statusPending = "pending"
)

var (
	// ErrNoJob is returned when the save endpoint accepted the request
	// without a job id.
	ErrNoJob = errors.New("wayback returned no job id")

	// ErrCaptureFailed is returned when the capture job ended in error.
	ErrCaptureFailed = errors.New("wayback capture failed")
)

// Enricher talks to the Wayback Machine save API.
type Enricher struct {
	http          *http.Client
	baseURL       string
	auth          string
	timeout       time.Duration
	interval      time.Duration
	retry         netutil.Policy
	notArchivedIn string
	logger        *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	o := env.Options
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p := o.String("proxy"); p != "" {
		pu, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(pu)
	}
	retry := netutil.DefaultPolicy()
	if n := o.Int("retries"); n > 0 {
		retry.Attempts = n
	}
	base := strings.TrimRight(o.String("api_url"), "/")
	if base == "" {
		base = "https://web.archive.org"
	}
	return &Enricher{
		http:          &http.Client{Transport: transport, Timeout: time.Minute},
		baseURL:       base,
		auth:          fmt.Sprintf("LOW %s:%s", o.String("key"), o.String("secret")),
		timeout:       o.Seconds("timeout"),
		interval:      o.Seconds("poll_interval"),
		retry:         retry,
		notArchivedIn: o.String("if_not_archived_within"),
		logger:        env.Logger,
	}, nil
}

// Suitable accepts every http(s) URL.
func (e *Enricher) Suitable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// Download submits a capture and returns a result carrying the wayback
// attributes, or nil when nothing was submitted.
func (e *Enricher) Download(ctx context.Context, item *model.Item) (*model.Item, error) {
	res := model.NewItem().Merge(item)
	if err := e.Enrich(ctx, res); err != nil {
		return nil, err
	}
	return res.Success(Name), nil
}

// Enrich implements module.Enricher. An item that already has a wayback
// attribute is left untouched.
func (e *Enricher) Enrich(ctx context.Context, item *model.Item) error {
	u, err := item.URL()
	if err != nil {
		return err
	}
	if prev := item.Get(KeyWayback); prev != nil {
		e.logger.Info("wayback already recorded", "url", u, "wayback", prev)
		return nil
	}

	jobID, err := e.submit(ctx, u)
	if err != nil {
		return err
	}

	snapshot, err := e.waitForCapture(ctx, jobID)
	switch {
	case err == nil:
		e.logger.Info("wayback capture complete", "url", u, "snapshot", snapshot)
		item.Set(KeyWayback, snapshot)
	case errors.Is(err, netutil.ErrIncomplete):
		e.logger.Info("wayback capture still pending, recording job link", "url", u, "job_id", jobID)
		item.Set(KeyWayback, map[string]any{
			"job_id":       jobID,
			"check_status": e.baseURL + "/save/status/" + jobID,
		})
	default:
		return err
	}
	item.Set(KeyCheckWayback, e.baseURL+"/web/*/"+u)
	return nil
}

type saveResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// submit posts the URL to the save endpoint and returns the job id. Network
// errors and 5xx responses are retried.
func (e *Enricher) submit(ctx context.Context, target string) (string, error) {
	form := url.Values{"url": {target}}
	if e.notArchivedIn != "" {
		form.Set("if_not_archived_within", e.notArchivedIn)
	}

	var jobID string
	err := netutil.Retry(ctx, e.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/save/", strings.NewReader(form.Encode()))
		if err != nil {
			return netutil.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		e.setHeaders(req)

		resp, err := e.http.Do(req)
		if err != nil {
			e.logger.Warn("problem posting to wayback, retrying", "error", err)
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("wayback save returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return netutil.Permanent(fmt.Errorf("wayback save returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		var sr saveResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return netutil.Permanent(fmt.Errorf("expected JSON from wayback, got %q: %w", truncate(string(body)), err))
		}
		if sr.JobID == "" {
			return netutil.Permanent(fmt.Errorf("%w: %s", ErrNoJob, sr.Message))
		}
		jobID = sr.JobID
		return nil
	})
	return jobID, err
}

type statusResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	OriginalURL string `json:"original_url"`
	Message     string `json:"message"`
}

// waitForCapture polls the job status until it completes or the timeout
// passes, in which case netutil.ErrIncomplete is returned.
func (e *Enricher) waitForCapture(ctx context.Context, jobID string) (string, error) {
	var snapshot string
	err := netutil.Poll(ctx, e.timeout, e.interval, func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/save/status/"+url.PathEscape(jobID), nil)
		if err != nil {
			return false, err
		}
		e.setHeaders(req)
		resp, err := e.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			e.logger.Debug("wayback status check failed, will retry", "job_id", jobID, "error", err)
			return false, nil
		}
		defer resp.Body.Close()

		var sr statusResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&sr); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, fmt.Errorf("expected JSON from wayback status: %w", err)
		}
		switch {
		case resp.StatusCode == http.StatusOK && sr.Status == statusSuccess:
			snapshot = fmt.Sprintf("%s/web/%s/%s", e.baseURL, sr.Timestamp, sr.OriginalURL)
			return true, nil
		case resp.StatusCode == http.StatusOK && sr.Status == statusPending:
			return false, nil
		default:
			return false, fmt.Errorf("%w: status %d %s %s", ErrCaptureFailed, resp.StatusCode, sr.Status, sr.Message)
		}
	})
	return snapshot, err
}

func (e *Enricher) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", e.auth)
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
