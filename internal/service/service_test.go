package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"stackit/internal/auth"
	"stackit/internal/cache"
	"stackit/internal/db"
	"stackit/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type broadcast struct {
	Room  string
	Event string
	Data  any
}

type recordingHub struct {
	mu    sync.Mutex
	calls []broadcast
}

func (h *recordingHub) Broadcast(_ context.Context, room, event string, data any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, broadcast{Room: room, Event: event, Data: data})
	return nil
}

func (h *recordingHub) to(room string) []broadcast {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []broadcast
	for _, c := range h.calls {
		if c.Room == room {
			out = append(out, c)
		}
	}
	return out
}

type sentMail struct{ to, subject, body string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type env struct {
	db     *gorm.DB
	mr     *miniredis.Miniredis
	hub    *recordingHub
	mailer *fakeMailer
	tokens *auth.TokenService

	otp       *OTPService
	users     *UserService
	rep       *Reputation
	questions *QuestionService
	answers   *AnswerService
	votes     *VoteService
	comments  *CommentService
	tags      *TagService
	flags     *FlagService
	notify    *NotificationService
	chat      *ChatService
	feed      *FeedService
	admin     *AdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb, err := db.OpenSQLite()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	mr := miniredis.RunT(t)
	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars", time.Hour)
	require.NoError(t, err)

	e := &env{db: gdb, mr: mr, hub: &recordingHub{}, mailer: &fakeMailer{}, tokens: tokens}
	e.otp = NewOTPService(store, e.mailer, 10*time.Minute, 10*time.Minute)
	e.otp.generate = func() (string, error) { return "123456", nil }
	e.users = NewUserService(gdb, tokens, e.otp)
	e.rep = NewReputation()
	e.notify = NewNotificationService(gdb, e.hub)
	e.questions = NewQuestionService(gdb, e.rep)
	e.answers = NewAnswerService(gdb, e.rep, e.notify)
	e.votes = NewVoteService(gdb)
	e.comments = NewCommentService(gdb, e.notify)
	e.tags = NewTagService(gdb)
	e.flags = NewFlagService(gdb)
	e.chat = NewChatService(gdb, e.hub)
	e.feed = NewFeedService(gdb)
	e.admin = NewAdminService(gdb, e.notify)
	return e
}

func (e *env) user(t *testing.T, email string, role models.Role) Actor {
	t.Helper()
	u := models.User{Email: email, DisplayName: email, Role: role}
	require.NoError(t, e.db.Create(&u).Error)
	return Actor{ID: u.ID, Role: u.Role}
}

func (e *env) member(t *testing.T, email string) Actor {
	return e.user(t, email, models.RoleMember)
}

// approvedQuestion 创建并审核一个问题。
func (e *env) approvedQuestion(t *testing.T, author Actor, title string, tags ...string) *models.Question {
	t.Helper()
	ctx := context.Background()
	q, err := e.questions.Create(ctx, author, QuestionInput{Title: title, Description: "details about " + title, Tags: tags})
	require.NoError(t, err)
	_, err = e.admin.Approve(ctx, Actor{Role: models.RoleAdmin}, q.ID)
	require.NoError(t, err)
	return q
}

func (e *env) reload(t *testing.T, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.First(&u, id).Error)
	return u
}
