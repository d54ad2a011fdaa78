package models

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User 即平台身份；通过 OAuth 创建的身份没有密码哈希。
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:190;not null" json:"email"`
	DisplayName  string     `gorm:"size:64;not null" json:"displayName"`
	PasswordHash *string    `gorm:"size:255" json:"-"`
	Role         Role       `gorm:"size:16;not null;default:member" json:"role"`
	AvatarURL    string     `gorm:"size:512" json:"avatarUrl"`
	Bio          string     `gorm:"type:text" json:"bio"`
	XP           int        `gorm:"not null;default:0;index" json:"xp"`
	Streak       int        `gorm:"not null;default:0" json:"streak"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// PublicUser 是可以对其他用户展示的资料字段。
type PublicUser struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	XP          int    `json:"xp"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL, XP: u.XP}
}

type QuestionStatus string

const (
	QuestionPending  QuestionStatus = "pending"
	QuestionApproved QuestionStatus = "approved"
)

type Question struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	AuthorID    uint           `gorm:"index;not null" json:"authorId"`
	Author      User           `gorm:"foreignKey:AuthorID" json:"author"`
	Status      QuestionStatus `gorm:"size:16;index;not null;default:pending" json:"status"`
	Tags        []Tag          `gorm:"many2many:question_tags;" json:"tags"`
	Answers     []Answer       `json:"answers,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type Answer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"index;not null" json:"questionId"`
	AuthorID   uint      `gorm:"index;not null" json:"authorId"`
	Author     User      `gorm:"foreignKey:AuthorID" json:"author"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Accepted   bool      `gorm:"not null;default:false" json:"accepted"`
	Comments   []Comment `json:"comments,omitempty"`
	Score      int       `gorm:"-" json:"score"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AnswerID  uint      `gorm:"index;not null" json:"answerId"`
	AuthorID  uint      `gorm:"index;not null" json:"authorId"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"author"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

type VoteType string

const (
	VoteUp   VoteType = "UP"
	VoteDown VoteType = "DOWN"
)

func (v VoteType) Valid() bool { return v == VoteUp || v == VoteDown }

// Vote 对 (user_id, answer_id) 唯一。
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_vote_user_answer;not null" json:"userId"`
	AnswerID  uint      `gorm:"uniqueIndex:idx_vote_user_answer;index;not null" json:"answerId"`
	Type      VoteType  `gorm:"size:8;not null" json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type TagFollow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_follow_user_tag;not null" json:"userId"`
	TagID     uint      `gorm:"uniqueIndex:idx_follow_user_tag;index;not null" json:"tagId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TargetKind 是举报与管理员删除可以作用的实体类型，取值封闭。
type TargetKind string

const (
	TargetQuestion TargetKind = "question"
	TargetAnswer   TargetKind = "answer"
	TargetComment  TargetKind = "comment"
	TargetTag      TargetKind = "tag"
)

func ParseTargetKind(s string) (TargetKind, error) {
	switch k := TargetKind(strings.ToLower(strings.TrimSpace(s))); k {
	case TargetQuestion, TargetAnswer, TargetComment, TargetTag:
		return k, nil
	}
	return "", fmt.Errorf("unknown target kind %q", s)
}

// Flaggable 报告该类型能否被普通用户举报。
func (k TargetKind) Flaggable() bool {
	return k == TargetQuestion || k == TargetAnswer || k == TargetComment
}

type Flag struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ReporterID uint       `gorm:"uniqueIndex:idx_flag_reporter_target;not null" json:"reporterId"`
	Reporter   User       `gorm:"foreignKey:ReporterID" json:"reporter"`
	TargetType TargetKind `gorm:"uniqueIndex:idx_flag_reporter_target;size:16;not null" json:"targetType"`
	TargetID   uint       `gorm:"uniqueIndex:idx_flag_reporter_target;not null" json:"targetId"`
	Reason     string     `gorm:"type:text;not null" json:"reason"`
	CreatedAt  time.Time  `gorm:"index" json:"createdAt"`
}

type ChatRoom struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Name      string           `gorm:"size:128" json:"name"`
	IsGroup   bool             `gorm:"not null;default:false" json:"isGroup"`
	CreatorID uint             `gorm:"not null" json:"creatorId"`
	Members   []ChatRoomMember `gorm:"foreignKey:RoomID" json:"members,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type ChatRoomMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"uniqueIndex:idx_member_room_user;not null" json:"roomId"`
	UserID    uint      `gorm:"uniqueIndex:idx_member_room_user;index;not null" json:"userId"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"index:idx_chat_msg_room_id;not null" json:"roomId"`
	SenderID  uint      `gorm:"index;not null" json:"senderId"`
	Sender    User      `gorm:"foreignKey:SenderID" json:"-"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	ActorID   *uint     `json:"actorId,omitempty"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Link      string    `gorm:"size:512" json:"link"`
	Read      bool      `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// All 返回需要自动迁移的全部模型。
func All() []any {
	return []any{
		&User{}, &Question{}, &Answer{}, &Comment{}, &Vote{}, &Tag{}, &TagFollow{},
		&Flag{}, &ChatRoom{}, &ChatRoomMember{}, &ChatMessage{}, &Notification{},
	}
}
