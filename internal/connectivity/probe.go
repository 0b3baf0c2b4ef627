package connectivity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"courier/internal/logging"
)

// Prober answers whether the host currently appears to have a usable
// network path. Implementations must be safe for repeated calls.
type Prober interface {
	Probe(ctx context.Context) bool
}

// LinkProber reads interface operstate from sysfs. Any non-loopback
// interface reporting "up" counts as online. An unreadable sysfs tree
// fails open so a missing platform signal never strands the queue.
type LinkProber struct {
	logger *slog.Logger
	root   string

	warnedOnce bool
}

// NewLinkProber builds a prober over /sys/class/net.
func NewLinkProber(logger *slog.Logger) *LinkProber {
	return &LinkProber{
		logger: logging.NewComponentLogger(logger, "link-probe"),
		root:   "/sys/class/net",
	}
}

func (p *LinkProber) Probe(_ context.Context) bool {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		if !p.warnedOnce {
			p.warnedOnce = true
			p.logger.Debug("sysfs network tree unreadable; assuming online",
				logging.String("path", p.root),
				logging.Error(err))
		}
		return true
	}

	sawInterface := false
	for _, entry := range entries {
		name := entry.Name()
		if name == "lo" {
			continue
		}
		sawInterface = true
		state, err := os.ReadFile(filepath.Join(p.root, name, "operstate"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(state)) == "up" {
			return true
		}
	}
	if !sawInterface {
		// Containers and test sandboxes may expose only loopback.
		return true
	}
	return false
}

// HTTPProber confirms reachability by issuing a HEAD request to a
// configured URL. Any HTTP response within the timeout counts as online;
// only transport failures read as offline.
type HTTPProber struct {
	logger  *slog.Logger
	client  *http.Client
	url     string
	timeout time.Duration
}

// NewHTTPProber builds a prober against url with the given per-probe
// timeout.
func NewHTTPProber(url string, timeout time.Duration, logger *slog.Logger) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		logger:  logging.NewComponentLogger(logger, "http-probe"),
		client:  &http.Client{Timeout: timeout},
		url:     url,
		timeout: timeout,
	}
}

func (p *HTTPProber) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Debug("probe request construction failed",
			logging.String("url", p.url),
			logging.Error(err))
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe request failed",
			logging.String("url", p.url),
			logging.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// Reachability is the question, not upstream health: any status will do.
	return true
}
