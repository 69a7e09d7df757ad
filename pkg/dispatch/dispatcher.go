package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAttemptTimeout       = 10 * time.Second
	DefaultAttemptsPerCandidate = 1
)

// Request is the encoded body the dispatcher sends to every candidate. It is
// never mutated, so the same bytes go out on each attempt.
type Request struct {
	Method      string
	Body        []byte
	ContentType string
	Headers     map[string]string
}

// Response is the first successful raw response.
type Response struct {
	StatusCode int
	Body       []byte
	Candidate  Candidate
	// Attempts counts every attempt made, including the successful one.
	Attempts int
	Duration time.Duration
}

func (r *Response) Text() string {
	return string(r.Body)
}

func (r *Response) DecodeJSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Notice describes an exhausted dispatch. One notice is emitted per Dispatch
// call that fails on every candidate.
type Notice struct {
	Label     string    `json:"label"`
	Attempts  int       `json:"attempts"`
	Endpoints int       `json:"endpoints"`
	LastError string    `json:"last_error"`
	Timeout   bool      `json:"timeout,omitempty"`
	At        time.Time `json:"at"`
}

type Notifier interface {
	NotifyExhausted(ctx context.Context, notice Notice)
}

type nopNotifier struct{}

func (nopNotifier) NotifyExhausted(context.Context, Notice) {}

type Dispatcher struct {
	client               *http.Client
	notifier             Notifier
	attemptTimeout       time.Duration
	attemptsPerCandidate int
}

type Option func(*Dispatcher)

// HTTPClient returns the client attempts are sent with.
func (d *Dispatcher) HTTPClient() *http.Client {
	return d.client
}

// Notifier returns the notifier exhausted dispatches are reported to.
func (d *Dispatcher) Notifier() Notifier {
	return d.notifier
}

func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

func WithDefaultAttemptTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.attemptTimeout = t
		}
	}
}

func WithDefaultAttemptsPerCandidate(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.attemptsPerCandidate = n
		}
	}
}

func NewDispatcher(options ...Option) *Dispatcher {
	ret := &Dispatcher{
		// no client level timeout, each attempt carries its own deadline
		client:               &http.Client{},
		notifier:             nopNotifier{},
		attemptTimeout:       DefaultAttemptTimeout,
		attemptsPerCandidate: DefaultAttemptsPerCandidate,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

type dispatchConfig struct {
	label                string
	attemptTimeout       time.Duration
	attemptsPerCandidate int
	requireJSON          bool
	accept               func(*Response) error
	silent               bool
}

type DispatchOption func(*dispatchConfig)

func WithLabel(label string) DispatchOption {
	return func(c *dispatchConfig) {
		c.label = label
	}
}

func WithAttemptTimeout(t time.Duration) DispatchOption {
	return func(c *dispatchConfig) {
		if t > 0 {
			c.attemptTimeout = t
		}
	}
}

// WithAttemptsPerCandidate sets how often the same (endpoint, proxy) pair is
// tried before moving on. The default is once.
func WithAttemptsPerCandidate(n int) DispatchOption {
	return func(c *dispatchConfig) {
		if n > 0 {
			c.attemptsPerCandidate = n
		}
	}
}

// WithRequireJSON makes a 2xx response whose body is not valid JSON count as
// a failed attempt.
func WithRequireJSON() DispatchOption {
	return func(c *dispatchConfig) {
		c.requireJSON = true
	}
}

// WithoutNotice suppresses the exhaustion notice. Callers that retry a
// whole dispatch use it and report once when they give up.
func WithoutNotice() DispatchOption {
	return func(c *dispatchConfig) {
		c.silent = true
	}
}

// WithAccept runs check on every 2xx response. A non-nil error counts as a
// failed attempt and the loop moves on to the next candidate.
func WithAccept(check func(*Response) error) DispatchOption {
	return func(c *dispatchConfig) {
		c.accept = check
	}
}

// Dispatch sends req to each candidate derived from endpoints, strictly one
// after the other, and returns the first consumable 2xx response. When every
// candidate fails, a single notice is emitted and an *ExhaustedError wrapping
// the last failure is returned. Cancellation of ctx aborts immediately and
// returns ctx.Err().
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	endpoints []Endpoint,
	req *Request,
	options ...DispatchOption,
) (*Response, error) {
	if req == nil {
		return nil, errors.New("nil dispatch request")
	}
	cfg := &dispatchConfig{
		attemptTimeout:       d.attemptTimeout,
		attemptsPerCandidate: d.attemptsPerCandidate,
	}
	for _, o := range options {
		o(cfg)
	}

	candidates := Candidates(endpoints)
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	var last error
	attempts := 0
	for _, c := range candidates {
		for i := 0; i < cfg.attemptsPerCandidate; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			attempts++

			log.Debug().
				Str("label", cfg.label).
				Str("candidate", c.String()).
				Str("url", c.URL()).
				Bool("proxied", c.Proxied()).
				Dur("timeout", cfg.attemptTimeout).
				Int("attempt", attempts).
				Msg("Dispatching request")

			resp, err := d.attempt(ctx, c, req, cfg)
			if err == nil {
				resp.Attempts = attempts
				log.Debug().
					Str("label", cfg.label).
					Str("candidate", c.String()).
					Int("status", resp.StatusCode).
					Dur("duration", resp.Duration).
					Int("bytes", len(resp.Body)).
					Msg("Candidate succeeded")
				return resp, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			last = err
			log.Warn().
				Err(err).
				Str("label", cfg.label).
				Str("candidate", c.String()).
				Msg("Candidate failed, moving on")
		}
	}

	exhausted := &ExhaustedError{
		Label:    cfg.label,
		Attempts: attempts,
		Last:     last,
	}
	log.Error().
		Err(last).
		Str("label", cfg.label).
		Int("attempts", attempts).
		Bool("timeout", IsTimeout(last)).
		Msg("All candidates failed")
	if cfg.silent {
		return nil, exhausted
	}
	d.notifier.NotifyExhausted(ctx, Notice{
		Label:     cfg.label,
		Attempts:  attempts,
		Endpoints: len(endpoints),
		LastError: last.Error(),
		Timeout:   IsTimeout(last),
		At:        time.Now(),
	})

	return nil, exhausted
}

func (d *Dispatcher) attempt(ctx context.Context, c Candidate, req *Request, cfg *dispatchConfig) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.attemptTimeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, c.URL(), body)
	if err != nil {
		return nil, &TransportError{Kind: KindTransport, Candidate: c, Cause: err}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, classify(attemptCtx, c, KindTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(attemptCtx, c, KindBody, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{
			Candidate:  c,
			StatusCode: resp.StatusCode,
			Body:       string(b),
		}
	}
	if cfg.requireJSON && !json.Valid(b) {
		return nil, &TransportError{
			Kind:      KindBody,
			Candidate: c,
			Cause:     errors.Errorf("response body is not valid JSON (%d bytes)", len(b)),
		}
	}

	ret := &Response{
		StatusCode: resp.StatusCode,
		Body:       b,
		Candidate:  c,
		Duration:   time.Since(start),
	}
	if cfg.accept != nil {
		if err := cfg.accept(ret); err != nil {
			return nil, &TransportError{Kind: KindBody, Candidate: c, Cause: err}
		}
	}
	return ret, nil
}

func classify(attemptCtx context.Context, c Candidate, fallback FailureKind, err error) error {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Candidate: c, Cause: err}
	}
	return &TransportError{Kind: fallback, Candidate: c, Cause: err}
}
