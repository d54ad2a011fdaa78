package service

import (
	"context"

	"stackit/internal/ws"
)

// Relay 实现 ws.Dispatcher，把实时事件落到聊天与通知服务上。
type Relay struct {
	chat   *ChatService
	notify *NotificationService
}

func NewRelay(chat *ChatService, notify *NotificationService) *Relay {
	return &Relay{chat: chat, notify: notify}
}

func (r *Relay) CanJoin(ctx context.Context, userID, roomID uint) (bool, error) {
	return r.chat.IsMember(ctx, userID, roomID)
}

func (r *Relay) SendMessage(ctx context.Context, userID, roomID uint, content string) error {
	_, err := r.chat.Send(ctx, userID, roomID, content)
	return err
}

func (r *Relay) Notify(ctx context.Context, senderID uint, req ws.NotifyRequest) error {
	_, err := r.notify.Notify(ctx, NotifyInput{
		RecipientID: req.RecipientID,
		ActorID:     senderID,
		Type:        req.Type,
		Content:     req.Content,
		Link:        req.Link,
	})
	return err
}

var _ ws.Dispatcher = (*Relay)(nil)
