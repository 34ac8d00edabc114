package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/tracer"
)

const defaultChunkSize = 4096

// Transport opens the generation stream. Implementations return a
// *domain.GenerationError of kind transport when the server rejects the
// request before streaming begins.
type Transport interface {
	Open(ctx context.Context, token string, body []byte) (io.ReadCloser, error)
}

// Client runs generation sessions. A Client is safe for concurrent use;
// every session owns its own decoder and state machine.
type Client struct {
	transport Transport
	creds     domain.CredentialProvider
	logger    *slog.Logger
	chunkSize int
}

// Option configures a Client.
type Option func(*Client)

// WithChunkSize sets the read size used when pumping the response body.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// NewClient creates a Client.
func NewClient(transport Transport, creds domain.CredentialProvider, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		creds:     creds,
		logger:    logger,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream returns the transitions of one generation session. Every range
// over the sequence issues a new request; a session cannot be resumed.
// The sequence ends after a complete transition on success. On failure the
// last element carries a non-nil error: with the failing transition for an
// error event or an id-less completion, with a zero Transition otherwise.
// Breaking out of the loop closes the response body.
func (c *Client) Stream(ctx context.Context, req domain.GenerationRequest) iter.Seq2[domain.Transition, error] {
	return func(yield func(domain.Transition, error) bool) {
		s := c.newSession()
		s.run(ctx, req, yield)
	}
}

// Generate runs one session to its end and returns exactly one outcome.
// Observers see every accepted transition, including the failing one.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest, observers ...Observer) (*domain.GenerationResult, error) {
	s := c.newSession(observers...)
	var final error
	s.run(ctx, req, func(_ domain.Transition, err error) bool {
		if err != nil {
			final = err
		}
		return true
	})
	if final != nil {
		return nil, final
	}
	if res := s.machine.Result(); res != nil {
		return res, nil
	}
	return nil, domain.IncompleteError()
}

type session struct {
	client     *Client
	decoder    *Decoder
	machine    *Machine
	dispatcher *Dispatcher
	logger     *slog.Logger
	// done is set once the final element was yielded or the consumer stopped.
	done bool
}

func (c *Client) newSession(observers ...Observer) *session {
	m := NewMachine()
	return &session{
		client:     c,
		decoder:    NewDecoder(),
		machine:    m,
		dispatcher: NewDispatcher(m, c.logger, observers...),
		logger:     c.logger,
	}
}

// run drives the session and yields its terminal failure, if any, unless
// pump already yielded it or the consumer stopped.
func (s *session) run(ctx context.Context, req domain.GenerationRequest, yield func(domain.Transition, error) bool) {
	ctx, span := tracer.StartSpan(ctx, "stream.session",
		trace.WithAttributes(tracer.StringAttr("generation.topic", truncate(req.Topic, 64))),
	)
	defer span.End()

	err := s.pump(ctx, req, yield)
	span.SetAttributes(
		tracer.StringAttr("generation.phase", s.machine.Phase().String()),
		tracer.IntAttr("generation.slides", len(s.machine.Slides())),
		tracer.IntAttr("generation.dropped_frames", s.dispatcher.Dropped()),
	)
	if err == nil {
		tracer.SetOK(span)
		return
	}

	tracer.RecordError(span, err)
	s.machine.Abort(err)
	s.logger.Warn("generation session failed",
		"kind", string(domain.KindOf(err)),
		"code", string(domain.ErrorCodeOf(err)),
		"phase", s.machine.Phase().String(),
		"error", err,
	)
	if !s.done {
		yield(domain.Transition{}, err)
	}
}

// pump reads the body until the machine is terminal, the body ends, or ctx
// is cancelled.
func (s *session) pump(ctx context.Context, req domain.GenerationRequest, yield func(domain.Transition, error) bool) error {
	token, err := s.client.creds.Token(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		return domain.NewGenerationError(domain.KindCredential, fmt.Sprintf("resolve credential: %v", err), err)
	}
	if strings.TrimSpace(token) == "" {
		return domain.NewGenerationError(domain.KindCredential, "not authenticated: no access token available", domain.ErrMissingCredential)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.NewGenerationError(domain.KindTransport, fmt.Sprintf("encode request: %v", err), err)
	}

	rc, err := s.client.transport.Open(ctx, token, body)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		var ge *domain.GenerationError
		if errors.As(err, &ge) {
			return ge
		}
		return domain.NewGenerationError(domain.KindTransport, err.Error(), err)
	}
	defer rc.Close()

	buf := make([]byte, s.client.chunkSize)
	for {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}

		n, rerr := rc.Read(buf)
		for _, f := range s.decoder.Feed(buf[:n]) {
			tr, derr := s.dispatcher.Dispatch(f)
			if derr != nil {
				if tr == nil {
					return domain.NewGenerationError(domain.KindProtocol, derr.Error(), derr)
				}
				s.done = true
				yield(*tr, derr)
				return derr
			}
			if tr == nil {
				continue
			}
			if !yield(*tr, nil) {
				s.done = true
				return nil
			}
			if tr.To == domain.PhaseComplete {
				s.logger.Info("generation complete",
					"presentation_id", s.machine.Result().PresentationID,
					"slides", s.machine.Result().SlideCount,
				)
				return nil
			}
		}

		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF):
			if dropped := s.decoder.Close(); dropped > 0 {
				s.logger.Debug("discarding partial record at end of stream", "bytes", dropped)
			}
			return domain.IncompleteError()
		case ctx.Err() != nil:
			return cancelled(ctx)
		default:
			return domain.NewGenerationError(domain.KindTransport, fmt.Sprintf("read stream: %v", rerr), rerr)
		}
	}
}

func cancelled(ctx context.Context) *domain.GenerationError {
	return domain.NewGenerationError(domain.KindCancelled, "generation cancelled", context.Cause(ctx))
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
