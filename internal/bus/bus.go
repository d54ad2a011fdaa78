// Package bus carries relay broadcasts between service instances over NATS.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Bus 包装一个 NATS 连接；实时层的广播在每个实例上都需要投递，因此不使用队列组。
type Bus struct {
	conn *nats.Conn
}

func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Bus{conn: nc}, nil
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.conn.Publish(subj, data)
}

type subscription struct {
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Unsubscribe()
}

// Subscribe 为每条消息调用 fn，ctx 结束时自动退订。
func (b *Bus) Subscribe(ctx context.Context, subj string, fn func(ctx context.Context, data []byte) error) (io.Closer, error) {
	if b == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	sub, err := b.conn.Subscribe(subj, handler(ctx, subj, fn))
	if err != nil {
		return nil, err
	}

	s := &subscription{sub: sub}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}

// handler 把 fn 的错误记为告警，单条坏消息不影响订阅。
func handler(ctx context.Context, subj string, fn func(ctx context.Context, data []byte) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if err := fn(ctx, msg.Data); err != nil {
			log.Warn().Err(err).Str("subject", subj).Msg("bus handler")
		}
	}
}
