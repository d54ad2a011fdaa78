package service

import (
	"context"
	"strings"

	"stackit/internal/apperror"
	"stackit/internal/metrics"
	"stackit/internal/models"
	"stackit/internal/ws"

	"gorm.io/gorm"
)

const maxMessageLen = 4000

// ChatService 管理私聊与群聊房间及其消息；消息先落库再通过 Hub 广播。
type ChatService struct {
	db  *gorm.DB
	hub Broadcaster
}

func NewChatService(db *gorm.DB, hub Broadcaster) *ChatService {
	return &ChatService{db: db, hub: hub}
}

// MessageDTO 是对外输出的聊天消息，附带发送者的公开资料。
type MessageDTO struct {
	models.ChatMessage
	Sender models.PublicUser `json:"sender"`
}

func toMessageDTO(m models.ChatMessage) MessageDTO {
	return MessageDTO{ChatMessage: m, Sender: m.Sender.Public()}
}

func (s *ChatService) usersExist(tx *gorm.DB, ids []uint) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(ids) {
		return apperror.New(apperror.ErrNotFound, "one or more users not found")
	}
	return nil
}

// OpenDirect 返回两人之间已有的私聊房间，没有则创建。
func (s *ChatService) OpenDirect(ctx context.Context, userID, otherID uint) (*models.ChatRoom, error) {
	if otherID == 0 || otherID == userID {
		return nil, apperror.Validation("userId", "userId must be another user")
	}
	db := s.db.WithContext(ctx)
	if err := s.usersExist(db, []uint{otherID}); err != nil {
		return nil, err
	}

	var roomIDs []uint
	err := db.Model(&models.ChatRoomMember{}).
		Select("chat_room_members.room_id").
		Joins("JOIN chat_rooms ON chat_rooms.id = chat_room_members.room_id").
		Where("chat_rooms.is_group = ? AND chat_room_members.user_id IN ?", false, []uint{userID, otherID}).
		Group("chat_room_members.room_id").
		Having("COUNT(DISTINCT chat_room_members.user_id) = 2").
		Order("chat_room_members.room_id asc").
		Limit(1).
		Pluck("chat_room_members.room_id", &roomIDs).Error
	if err != nil {
		return nil, err
	}
	if len(roomIDs) > 0 {
		return s.room(ctx, roomIDs[0])
	}

	room := models.ChatRoom{
		CreatorID: userID,
		Members:   []models.ChatRoomMember{{UserID: userID}, {UserID: otherID}},
	}
	if err := db.Omit("Members.User").Create(&room).Error; err != nil {
		return nil, err
	}
	return s.room(ctx, room.ID)
}

// CreateGroup 创建群聊，创建者自动成为成员。
func (s *ChatService) CreateGroup(ctx context.Context, userID uint, name string, memberIDs []uint) (*models.ChatRoom, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 128 {
		return nil, apperror.Validation("name", "name must be 1-128 characters")
	}
	seen := map[uint]bool{userID: true}
	ids := []uint{userID}
	for _, id := range memberIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	db := s.db.WithContext(ctx)
	if err := s.usersExist(db, ids); err != nil {
		return nil, err
	}
	room := models.ChatRoom{Name: name, IsGroup: true, CreatorID: userID}
	for _, id := range ids {
		room.Members = append(room.Members, models.ChatRoomMember{UserID: id})
	}
	if err := db.Omit("Members.User").Create(&room).Error; err != nil {
		return nil, err
	}
	return s.room(ctx, room.ID)
}

func (s *ChatService) room(ctx context.Context, id uint) (*models.ChatRoom, error) {
	var r models.ChatRoom
	if err := s.db.WithContext(ctx).Preload("Members.User").First(&r, id).Error; err != nil {
		return nil, lookup(err, "chat room", id)
	}
	return &r, nil
}

// Rooms 返回身份所属的全部房间，最近创建的在前。
func (s *ChatService) Rooms(ctx context.Context, userID uint) ([]models.ChatRoom, error) {
	var out []models.ChatRoom
	err := s.db.WithContext(ctx).Preload("Members.User").
		Where("id IN (?)", s.db.Model(&models.ChatRoomMember{}).Select("room_id").Where("user_id = ?", userID)).
		Order("updated_at desc, id desc").
		Find(&out).Error
	return out, err
}

// IsMember 报告 userID 是否是房间的持久化成员。
func (s *ChatService) IsMember(ctx context.Context, userID, roomID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ChatRoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	return n > 0, err
}

func (s *ChatService) requireMember(ctx context.Context, userID, roomID uint) error {
	if err := s.db.WithContext(ctx).Select("id").First(&models.ChatRoom{}, roomID).Error; err != nil {
		return lookup(err, "chat room", roomID)
	}
	ok, err := s.IsMember(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// Messages 分页查询房间消息，按 id 升序返回。
func (s *ChatService) Messages(ctx context.Context, userID, roomID uint, limit int, beforeID uint) ([]MessageDTO, error) {
	if err := s.requireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Preload("Sender").Where("room_id = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var msgs []models.ChatMessage
	if err := q.Order("id desc").Limit(clampLimit(limit, 50, 200)).Find(&msgs).Error; err != nil {
		return nil, err
	}
	out := make([]MessageDTO, len(msgs))
	// 反转为升序
	for i, m := range msgs {
		out[len(msgs)-1-i] = toMessageDTO(m)
	}
	return out, nil
}

// Send 持久化消息后向房间广播 receive-message。
func (s *ChatService) Send(ctx context.Context, userID, roomID uint, content string) (*MessageDTO, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxMessageLen {
		return nil, apperror.Validation("content", "content must be 1-4000 characters")
	}
	if err := s.requireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	m := models.ChatMessage{RoomID: roomID, SenderID: userID, Content: content}
	if err := s.db.WithContext(ctx).Omit("Sender").Create(&m).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.ChatRoom{}).Where("id = ?", roomID).Update("updated_at", m.CreatedAt).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Preload("Sender").First(&m, m.ID).Error; err != nil {
		return nil, err
	}
	dto := toMessageDTO(m)
	if err := s.hub.Broadcast(ctx, ws.ChatRoom(roomID), ws.EventReceiveMessage, dto); err != nil {
		return nil, err
	}
	metrics.WsMessagesTotal.Inc()
	return &dto, nil
}
