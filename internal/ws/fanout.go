package ws

import "context"

// Publisher 是 bus.Bus 的发布端。
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

type busFanout struct {
	pub     Publisher
	subject string
}

// NewBusFanout 把广播发布到 subject，各实例订阅同一 subject 并调用 HandleBusMessage。
func NewBusFanout(pub Publisher, subject string) Fanout {
	return &busFanout{pub: pub, subject: subject}
}

func (f *busFanout) Publish(ctx context.Context, env Envelope) error {
	return f.pub.Publish(ctx, f.subject, env)
}
