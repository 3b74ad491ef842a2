package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/navarch/homing/internal/models"
	"github.com/navarch/homing/internal/store"
)

// ErrTimeout is returned when a call's response row does not reach a
// terminal status within the response timeout. Callers treat it as a
// transient collaborator failure, never as a plan error.
var ErrTimeout = errors.New("messaging: response timeout")

// ErrRemote wraps a failure reported by the serving side of a call.
var ErrRemote = errors.New("messaging: remote failure")

// Ctxt carries request correlation data on every call.
type Ctxt struct {
	PlanID   string `json:"plan_id"`
	Keyspace string `json:"keyspace"`
}

// ClientConfig tunes the synchronous wait loop of Call.
type ClientConfig struct {
	// PollInterval between response-row checks. Defaults to 500ms.
	PollInterval time.Duration
	// ResponseTimeout bounds the whole wait. Defaults to 2 minutes.
	ResponseTimeout time.Duration
	// Keyspace stamped into every request's ctxt.
	Keyspace string
}

// Client issues synchronous request/response calls over the shared store:
// it inserts a request row and polls that row until a listener writes a
// terminal status, or the response timeout elapses.
type Client struct {
	store store.Store
	cfg   ClientConfig
}

func NewClient(st store.Store, cfg ClientConfig) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 2 * time.Minute
	}
	return &Client{store: st, cfg: cfg}
}

// Call publishes a request for method with JSON-encodable args and blocks
// until the response arrives. The result is unmarshalled into out when out
// is non-nil.
func (c *Client) Call(ctx context.Context, planID string, method string, args interface{}, out interface{}) error {
	argBytes, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args for %s: %w", method, err)
	}
	ctxtBytes, err := json.Marshal(Ctxt{PlanID: planID, Keyspace: c.cfg.Keyspace})
	if err != nil {
		return fmt.Errorf("marshal ctxt for %s: %w", method, err)
	}

	msg, err := c.store.CreateMessage(ctx, store.MessageInput{
		ID:     uuid.New(),
		Method: method,
		Args:   argBytes,
		Ctxt:   ctxtBytes,
	})
	if err != nil {
		return fmt.Errorf("publish %s request: %w", method, err)
	}

	deadline := time.Now().Add(c.cfg.ResponseTimeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s (%s)", ErrTimeout, method, msg.ID)
		}
		got, err := c.store.GetMessage(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("poll %s response: %w", method, err)
		}
		switch got.Status {
		case models.MsgStatusDone:
			if out == nil || len(got.Response) == 0 {
				return nil
			}
			if err := json.Unmarshal(got.Response, out); err != nil {
				return fmt.Errorf("decode %s response: %w", method, err)
			}
			return nil
		case models.MsgStatusError:
			return fmt.Errorf("%w: %s: %s", ErrRemote, method, got.Failure)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

// HandlerFunc executes one method call on the serving side.
type HandlerFunc func(ctx context.Context, args json.RawMessage, ctxt Ctxt) (interface{}, error)

// ListenerConfig tunes the serving loop.
type ListenerConfig struct {
	PollInterval time.Duration
	Owner        string
	Logger       *log.Logger
}

// Listener is the serving half of the fabric: it claims pending request
// rows and dispatches them to registered handlers. Unknown methods are
// completed with a failure so callers fail fast instead of timing out.
type Listener struct {
	store    store.Store
	handlers map[string]HandlerFunc
	cfg      ListenerConfig
}

func NewListener(st store.Store, cfg ListenerConfig) *Listener {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Owner == "" {
		host, _ := os.Hostname()
		cfg.Owner = host
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[messaging] ", log.LstdFlags)
	}
	return &Listener{store: st, handlers: map[string]HandlerFunc{}, cfg: cfg}
}

func (l *Listener) Handle(method string, fn HandlerFunc) {
	l.handlers[method] = fn
}

// Run polls for pending requests until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := l.ProcessNext(ctx)
		if err != nil {
			l.cfg.Logger.Printf("process message: %v", err)
		}
		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.cfg.PollInterval):
			}
		}
	}
}

// ProcessNext claims and serves a single request, returning whether work
// was done.
func (l *Listener) ProcessNext(ctx context.Context) (bool, error) {
	msg, err := l.store.ClaimNextMessage(ctx, l.cfg.Owner)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var ctxt Ctxt
	if len(msg.Ctxt) > 0 {
		_ = json.Unmarshal(msg.Ctxt, &ctxt)
	}

	fn, ok := l.handlers[msg.Method]
	if !ok {
		return true, l.store.CompleteMessage(ctx, msg.ID, nil, fmt.Sprintf("unknown method %q", msg.Method))
	}

	result, err := fn(ctx, msg.Args, ctxt)
	if err != nil {
		return true, l.store.CompleteMessage(ctx, msg.ID, nil, err.Error())
	}
	respBytes, err := json.Marshal(result)
	if err != nil {
		return true, l.store.CompleteMessage(ctx, msg.ID, nil, fmt.Sprintf("encode response: %v", err))
	}
	return true, l.store.CompleteMessage(ctx, msg.ID, respBytes, "")
}
