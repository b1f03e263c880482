package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ypwhs/cp02-monitor/internal/logging"
)

const (
	// MinPollInterval is the floor for the fetch rate gate.
	MinPollInterval = 500 * time.Millisecond

	// DefaultErrorThreshold is the consecutive-error count at which the
	// HTTP client is discarded and rebuilt, recovering from a wedged
	// connection to a rebooted device.
	DefaultErrorThreshold = 5

	// fetchTimeout bounds one HTTP fetch end to end.
	fetchTimeout = 2 * time.Second

	// maxResponseBody caps how much of a metrics response is read. The full
	// five-port exposition is well under 4KB; anything larger is truncated
	// rather than buffered unbounded.
	maxResponseBody = 64 << 10
)

// State is the poller's fetch state.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateSuccess
	StateError
)

// Outcome classifies one Poll call.
type Outcome int

const (
	// OutcomeSkipped: a gate (link, rate, cooldown) suppressed the attempt.
	OutcomeSkipped Outcome = iota
	// OutcomeSuccess: HTTP 200, payload handed to the parser.
	OutcomeSuccess
	// OutcomeTransportError: connect/timeout/DNS failure.
	OutcomeTransportError
	// OutcomeHTTPError: a response arrived with a non-200 status.
	OutcomeHTTPError
)

// Poller drives the telemetry fetch loop for one target URL.
//
// Poll is designed to be called from a single owning loop (a ticker). The
// rate gate makes the calls strictly serialized: at most one fetch is ever
// in flight, and two triggers closer together than the minimum interval
// produce one request. The mutex is released while the request is on the
// wire, so read accessors stay responsive during a slow fetch; an in-flight
// guard keeps even overlapping Poll calls from doubling requests.
//
// Failure policy follows the device's reboot behavior: errors flip the
// model to DataError rather than propagating, a short cooldown suppresses
// the attempt right after a failure, and after errorThreshold consecutive
// failures the underlying client is discarded and lazily rebuilt.
type Poller struct {
	mu    sync.Mutex
	model *Model

	url            string
	minInterval    time.Duration
	cooldown       time.Duration
	errorThreshold int

	client   *http.Client
	rebuilds int

	state             State
	linkUp            bool
	everSucceeded     bool
	dataError         bool
	consecutiveErrors int
	lastFetchAt       time.Time
	lastErrorAt       time.Time
}

// NewPoller creates a Poller feeding model from url. minInterval is clamped
// to MinPollInterval; errorThreshold of zero or less means
// DefaultErrorThreshold.
func NewPoller(model *Model, url string, minInterval time.Duration, errorThreshold int) *Poller {
	if minInterval < MinPollInterval {
		minInterval = MinPollInterval
	}
	if errorThreshold <= 0 {
		errorThreshold = DefaultErrorThreshold
	}
	return &Poller{
		model:       model,
		url:         url,
		minInterval: minInterval,
		// Long enough that the attempt one interval after a fast failure is
		// still inside the window, short enough to never skip two.
		cooldown:       minInterval + minInterval/2,
		errorThreshold: errorThreshold,
	}
}

// SetLinkUp records the link status reported by the network collaborator.
// While the link is down no fetch is attempted and the model reads
// Disconnected.
func (p *Poller) SetLinkUp(up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linkUp = up
	p.publishConnectivityLocked()
}

// SetTargetURL retargets the poller, typically after a scan confirmed a new
// device address. The error streak is reset so the new target gets a fresh
// threshold.
func (p *Poller) SetTargetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.url == url {
		return
	}
	logging.Info("Poller retargeted",
		zap.String("old_url", p.url),
		zap.String("new_url", url),
	)
	p.url = url
	p.consecutiveErrors = 0
	p.lastErrorAt = time.Time{}
}

// TargetURL returns the current fetch URL.
func (p *Poller) TargetURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// State returns the current fetch state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Poll performs at most one fetch, honoring the link, rate and cooldown
// gates. It blocks for at most the fetch timeout. The mutex is dropped
// while the request is in flight; a concurrent Poll during that window is
// suppressed by the in-flight state.
func (p *Poller) Poll() Outcome {
	p.mu.Lock()

	now := time.Now()

	if !p.linkUp {
		p.state = StateIdle
		p.publishConnectivityLocked()
		p.mu.Unlock()
		return OutcomeSkipped
	}
	if p.state == StateFetching {
		p.mu.Unlock()
		return OutcomeSkipped
	}
	if !p.lastFetchAt.IsZero() && now.Sub(p.lastFetchAt) < p.minInterval {
		p.mu.Unlock()
		return OutcomeSkipped
	}
	// Cooldown: right after an error the device may still be rebooting, so
	// the very next eligible attempt is suppressed. Keyed on the error
	// timestamp, not the streak counter, so it still holds when the
	// threshold rebuild just reset the counter.
	if !p.lastErrorAt.IsZero() && now.Sub(p.lastErrorAt) < p.cooldown {
		p.mu.Unlock()
		return OutcomeSkipped
	}

	// Lazily (re)build the client, both on first use and after a rebuild
	// was forced by the error threshold.
	if p.client == nil {
		p.client = newFetchClient()
		p.rebuilds++
	}

	p.state = StateFetching
	p.lastFetchAt = now
	client := p.client
	url := p.url
	p.mu.Unlock()

	start := time.Now()
	body, statusCode, err := fetch(client, url)
	logging.LogFetch(url, statusCode, err, time.Since(start))

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.failLocked()
		return OutcomeTransportError
	}
	if statusCode != http.StatusOK {
		p.failLocked()
		return OutcomeHTTPError
	}

	p.model.ApplyMetrics(body)
	p.state = StateSuccess
	p.everSucceeded = true
	p.dataError = false
	p.consecutiveErrors = 0
	p.lastErrorAt = time.Time{}
	p.publishConnectivityLocked()
	return OutcomeSuccess
}

// fetch performs one GET against url with the given client.
func fetch(client *http.Client, url string) (body []byte, statusCode int, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", "cp02-monitor")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// failLocked records one error outcome: flag, streak, timestamp, and the
// client rebuild once the streak hits the threshold. Caller must hold p.mu.
func (p *Poller) failLocked() {
	p.state = StateError
	p.dataError = true
	p.consecutiveErrors++
	p.lastErrorAt = time.Now()

	if p.consecutiveErrors >= p.errorThreshold {
		if p.client != nil {
			p.client.CloseIdleConnections()
		}
		p.client = nil
		p.consecutiveErrors = 0
	}

	p.publishConnectivityLocked()
}

// publishConnectivityLocked derives ConnectivityState from the link status
// and the last fetch outcome and pushes it into the model. Caller must hold
// p.mu.
func (p *Poller) publishConnectivityLocked() {
	switch {
	case !p.linkUp:
		p.model.setConnectivity(Disconnected)
	case p.dataError:
		p.model.setConnectivity(DataError)
	case !p.everSucceeded:
		p.model.setConnectivity(Connecting)
	default:
		p.model.setConnectivity(Connected)
	}
}

// newFetchClient builds the HTTP client for a single-device polling loop:
// a tiny keep-alive pool and a hard per-request timeout.
func newFetchClient() *http.Client {
	return &http.Client{
		Timeout: fetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        2,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
			DisableKeepAlives:   false,
		},
	}
}
