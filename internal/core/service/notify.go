package service

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/telemetry/metric"
)

// DefaultBroadcastConcurrency bounds parallel deliveries during a broadcast.
const DefaultBroadcastConcurrency = 16

// Client is a connected page that can receive messages.
type Client interface {
	ID() string
	Post(ctx context.Context, msg domain.Message) error
}

// ClientSource enumerates the pages reachable right now.
type ClientSource interface {
	Clients() []Client
}

// Notifier tells pages whether the database is usable.
//
// Activate broadcasts the outcome of the first load to every page.
// HandleMessage answers PING_DB from one page, after activation is done.
type Notifier struct {
	engines     EngineProvider
	clients     ClientSource
	metrics     *metric.Registry
	logger      *slog.Logger
	concurrency int

	activateOnce sync.Once
	activated    chan struct{}
}

// NewNotifier creates a Notifier. concurrency <= 0 selects
// DefaultBroadcastConcurrency.
func NewNotifier(engines EngineProvider, clients ClientSource, concurrency int, metrics *metric.Registry, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultBroadcastConcurrency
	}
	return &Notifier{
		engines:     engines,
		clients:     clients,
		metrics:     metrics,
		logger:      logger.With("component", "notifier"),
		concurrency: concurrency,
		activated:   make(chan struct{}),
	}
}

// Activate loads the database and broadcasts the outcome once.
// Calls after the first return immediately.
func (n *Notifier) Activate(ctx context.Context) {
	n.activateOnce.Do(func() {
		defer close(n.activated)

		msg := domain.ReadyMessage()
		if _, err := n.engines.EnsureReady(ctx); err != nil {
			msg = domain.ErrorMessage(err)
		}
		n.Broadcast(ctx, msg)
	})
}

// Activated is closed once the activation broadcast has been sent.
func (n *Notifier) Activated() <-chan struct{} {
	return n.activated
}

// Broadcast posts msg to every client currently reachable and returns the
// number of successful deliveries. Failed deliveries are logged.
func (n *Notifier) Broadcast(ctx context.Context, msg domain.Message) int {
	clients := n.clients.Clients()

	var (
		mu        sync.Mutex
		delivered int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for _, c := range clients {
		g.Go(func() error {
			if err := n.post(gctx, c, msg); err != nil {
				return nil
			}
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	n.logger.Info("broadcast sent",
		"type", string(msg.Type),
		"clients", len(clients),
		"delivered", delivered)
	return delivered
}

// HandleMessage processes one inbound page message.
//
// It waits for activation to finish so a reply never overtakes the
// broadcast. Only PING_DB is answered, and only to the sender.
func (n *Notifier) HandleMessage(ctx context.Context, from Client, raw []byte) error {
	select {
	case <-n.activated:
	case <-ctx.Done():
		return ctx.Err()
	}

	msg, err := domain.DecodeMessage(raw)
	if err == nil && msg.Type != domain.MessagePingDB {
		err = domain.ErrProtocol.WithDetails("unexpected " + string(msg.Type) + " from client")
	}
	if err != nil {
		n.metrics.IncProtocolErrors()
		n.logger.Warn("dropping client message",
			"client_id", from.ID(),
			"error", domain.Describe(err))
		return err
	}

	reply := domain.ReadyMessage()
	if _, err := n.engines.EnsureReady(ctx); err != nil {
		reply = domain.ErrorMessage(err)
	}
	return n.post(ctx, from, reply)
}

func (n *Notifier) post(ctx context.Context, c Client, msg domain.Message) error {
	err := c.Post(ctx, msg)
	n.metrics.ObserveNotification(string(msg.Type), err)
	if err != nil {
		n.logger.Warn("message delivery failed",
			"client_id", c.ID(),
			"type", string(msg.Type),
			"error", err)
	}
	return err
}
