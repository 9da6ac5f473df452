package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/onionrotate/internal/clock"
	"github.com/nao1215/onionrotate/internal/model"
)

// ErrVerificationFailure is returned when no endpoint produced a valid
// address.
var ErrVerificationFailure = errors.New("no endpoint returned a valid address")

const (
	// DefaultRequestTimeout bounds each endpoint request.
	DefaultRequestTimeout = 8 * time.Second

	// DefaultPassBackoff is the wait between passes when WithPasses > 1.
	DefaultPassBackoff = time.Second

	// maxBodySize is the most response data read from an endpoint. An
	// address is at most 15 bytes; the rest is whitespace slack.
	maxBodySize = 1024

	// userAgent is sent with every request. A generic client string keeps
	// the request indistinguishable from common command-line tools.
	userAgent = "curl/8.5.0"
)

// Doer sends HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Shuffler permutes n elements using swap, like rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// Verifier queries address-reporting endpoints.
type Verifier struct {
	client         Doer
	endpoints      []string
	shuffle        Shuffler
	requestTimeout time.Duration
	passes         int
	passBackoff    time.Duration
	limiter        *rate.Limiter
	clock          clock.Clock
	logger         *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithEndpoints replaces the endpoint list.
func WithEndpoints(endpoints ...string) Option {
	return func(v *Verifier) {
		v.endpoints = append([]string(nil), endpoints...)
	}
}

// WithShuffler injects the permutation used before each pass.
func WithShuffler(shuffle Shuffler) Option {
	return func(v *Verifier) {
		v.shuffle = shuffle
	}
}

// WithRand shuffles with the given random source.
func WithRand(r *rand.Rand) Option {
	return func(v *Verifier) {
		v.shuffle = r.Shuffle
	}
}

// WithRequestTimeout sets the timeout of each endpoint request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(v *Verifier) {
		if timeout > 0 {
			v.requestTimeout = timeout
		}
	}
}

// WithPasses sets how many passes over the endpoints a verification may
// make, waiting backoff between passes. The default is one pass.
func WithPasses(passes int, backoff time.Duration) Option {
	return func(v *Verifier) {
		if passes > 0 {
			v.passes = passes
		}
		v.passBackoff = backoff
	}
}

// WithRequestSpacing enforces a minimum gap between consecutive endpoint
// requests. Zero disables spacing.
func WithRequestSpacing(spacing time.Duration) Option {
	return func(v *Verifier) {
		if spacing <= 0 {
			v.limiter = nil
			return
		}
		v.limiter = rate.NewLimiter(rate.Every(spacing), 1)
	}
}

// WithClock sets the clock used for pass backoff.
func WithClock(clk clock.Clock) Option {
	return func(v *Verifier) {
		v.clock = clk
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// New creates a Verifier that sends requests with client. In production
// client is the Tor client's HTTP client, so every request is proxied.
func New(client Doer, opts ...Option) *Verifier {
	v := &Verifier{
		client:         client,
		endpoints:      append([]string(nil), DefaultEndpoints...),
		shuffle:        rand.Shuffle,
		requestTimeout: DefaultRequestTimeout,
		passes:         1,
		passBackoff:    DefaultPassBackoff,
		clock:          clock.New(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.logger == nil {
		v.logger = slog.Default()
	}

	return v
}

// Endpoints returns a copy of the configured endpoints.
func (v *Verifier) Endpoints() []string {
	return append([]string(nil), v.endpoints...)
}

// CurrentAddress returns the first valid address reported by an endpoint.
//
// It returns ErrVerificationFailure when no endpoint produced one, and
// ctx.Err() when cancelled. The returned Address is the zero value in
// both cases.
func (v *Verifier) CurrentAddress(ctx context.Context) (model.Address, error) {
	for pass := range v.passes {
		if pass > 0 {
			if err := v.clock.Sleep(ctx, v.passBackoff); err != nil {
				return model.Address{}, err
			}
		}

		order := v.Endpoints()
		v.shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, endpoint := range order {
			addr, err := v.query(ctx, endpoint)
			if err == nil {
				v.logger.Debug("address verified", "endpoint", endpoint, "pass", pass+1)
				return addr, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.Address{}, ctxErr
			}
			v.logger.Debug("endpoint skipped", "endpoint", endpoint, "error", err)
		}
	}

	return model.Address{}, ErrVerificationFailure
}

// query fetches one endpoint and parses its body.
func (v *Verifier) query(ctx context.Context, endpoint string) (model.Address, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return model.Address{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, v.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Address{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := v.client.Do(req)
	if err != nil {
		return model.Address{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Address{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.Address{}, fmt.Errorf("read body: %w", err)
	}

	return model.ParseAddress(strings.TrimSpace(string(body)))
}
