package service

import (
	"time"

	"stackit/internal/auth"
	"stackit/internal/cache"
	"stackit/internal/mail"

	"gorm.io/gorm"
)

type Options struct {
	OTPTTL      time.Duration
	VerifiedTTL time.Duration
}

// Set 聚合全部业务服务，在进程启动时构造一次后注入 handler。
type Set struct {
	OTP           *OTPService
	Users         *UserService
	Questions     *QuestionService
	Answers       *AnswerService
	Votes         *VoteService
	Comments      *CommentService
	Tags          *TagService
	Flags         *FlagService
	Notifications *NotificationService
	Chat          *ChatService
	Feed          *FeedService
	Admin         *AdminService
	Relay         *Relay
}

func NewSet(db *gorm.DB, store cache.Store, mailer mail.Mailer, tokens *auth.TokenService, hub Broadcaster, opts Options) *Set {
	rep := NewReputation()
	otp := NewOTPService(store, mailer, opts.OTPTTL, opts.VerifiedTTL)
	notify := NewNotificationService(db, hub)
	chat := NewChatService(db, hub)
	return &Set{
		OTP:           otp,
		Users:         NewUserService(db, tokens, otp),
		Questions:     NewQuestionService(db, rep),
		Answers:       NewAnswerService(db, rep, notify),
		Votes:         NewVoteService(db),
		Comments:      NewCommentService(db, notify),
		Tags:          NewTagService(db),
		Flags:         NewFlagService(db),
		Notifications: notify,
		Chat:          chat,
		Feed:          NewFeedService(db),
		Admin:         NewAdminService(db, notify),
		Relay:         NewRelay(chat, notify),
	}
}
