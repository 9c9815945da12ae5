// Package subscriber implements §4.H: a single live subscriber per scan,
// fed by NATS JetStream, with keepalive ticks and preemption of a prior
// subscriber for the same scanId. Durable replay is served directly from
// the event store (internal/eventstore), not from this package.
package subscriber

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/platform/natsclient"
)

// KeepaliveInterval is the idle duration after which a keepalive tick is
// emitted (§4.H, §6 scan.keepaliveInterval default).
const KeepaliveInterval = 15 * time.Second

// FanOut manages at most one live subscription per scanId, preempting an
// existing one when a new caller subscribes to the same scan.
type FanOut struct {
	nats   *natsclient.Client
	logger *zap.Logger

	mu     sync.Mutex
	active map[domain.ScanId]context.CancelFunc
}

// New constructs a FanOut.
func New(natsClient *natsclient.Client, logger *zap.Logger) *FanOut {
	return &FanOut{nats: natsClient, logger: logger, active: make(map[domain.ScanId]context.CancelFunc)}
}

// Subscribe returns a channel of live events for scanId. If another
// subscriber is already live for the same scanId, it is cancelled first
// (§4.H "a second subscriber ... preempts the first"). The channel is
// closed when ctx is cancelled or the underlying NATS subscription ends.
func (f *FanOut) Subscribe(ctx context.Context, scanId domain.ScanId) (<-chan domain.ScanEvent, error) {
	subCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	if prior, ok := f.active[scanId]; ok {
		prior()
	}
	f.active[scanId] = cancel
	f.mu.Unlock()

	sub, err := f.nats.Conn.SubscribeSync(natsclient.Subject(string(scanId)))
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan domain.ScanEvent)
	go f.pump(subCtx, scanId, sub, out)
	return out, nil
}

func (f *FanOut) pump(ctx context.Context, scanId domain.ScanId, sub *nats.Subscription, out chan<- domain.ScanEvent) {
	defer close(out)
	defer sub.Unsubscribe()

	idle := time.NewTimer(KeepaliveInterval)
	defer idle.Stop()

	msgs := make(chan *nats.Msg)
	go func() {
		defer close(msgs)
		for {
			msg, err := sub.NextMsgWithContext(ctx)
			if err != nil {
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			select {
			case out <- domain.ScanEvent{ScanId: scanId, Type: domain.EventKeepalive, Payload: domain.KeepalivePayload{Ts: time.Now().UTC()}}:
			case <-ctx.Done():
				return
			}
			idle.Reset(KeepaliveInterval)
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var event domain.ScanEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				f.logger.Warn("subscriber: malformed event on wire", zap.Error(err))
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(KeepaliveInterval)
		}
	}
}

