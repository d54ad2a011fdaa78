package service

import (
	"context"
	"testing"
	"time"

	"stackit/internal/apperror"
	"stackit/internal/models"
	"stackit/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestQuestion_PendingUntilApproved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author, other := e.member(t, "a@x.com"), e.member(t, "b@x.com")

	q, err := e.questions.Create(ctx, author, QuestionInput{Title: "How?", Description: "Why?", Tags: []string{"Go", "go", " sql "}})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionPending, q.Status)
	assert.Len(t, q.Tags, 2)
	assert.Equal(t, XPQuestion, e.reload(t, author.ID).XP)

	list, err := e.questions.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = e.questions.Get(ctx, other, q.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.questions.Get(ctx, author, q.ID)
	assert.NoError(t, err)

	pending, err := e.admin.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = e.admin.Approve(ctx, Actor{ID: other.ID, Role: models.RoleAdmin}, q.ID)
	require.NoError(t, err)
	list, err = e.questions.List(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, e.hub.to(ws.UserRoom(author.ID)), 1, "author notified of approval")
}

func TestQuestion_ListFiltersByTag(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.member(t, "a@x.com")
	e.approvedQuestion(t, a, "first", "go")
	e.approvedQuestion(t, a, "second", "rust")

	list, err := e.questions.List(ctx, ListQuery{Tag: "GO"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Title)
}

func TestQuestion_UpdateOwnerOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.member(t, "a@x.com"), e.member(t, "b@x.com")
	q := e.approvedQuestion(t, a, "title", "go")

	_, err := e.questions.Update(ctx, b, q.ID, QuestionInput{Title: "x", Description: "y"})
	assert.ErrorIs(t, err, ErrNotOwner)

	got, err := e.questions.Update(ctx, a, q.ID, QuestionInput{Title: "new", Description: "y", Tags: []string{"sql"}})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "sql", got.Tags[0].Name)
}

func TestQuestion_DeleteCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.member(t, "a@x.com"), e.member(t, "b@x.com")
	admin := e.user(t, "root@x.com", models.RoleAdmin)
	q := e.approvedQuestion(t, a, "title", "go")
	ans, err := e.answers.Create(ctx, b, q.ID, "answer")
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, a, ans.ID, "thanks")
	require.NoError(t, err)
	_, err = e.votes.Cast(ctx, a.ID, ans.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = e.flags.Create(ctx, b, FlagInput{TargetType: "question", TargetID: q.ID, Reason: "spam"})
	require.NoError(t, err)

	assert.ErrorIs(t, e.questions.Delete(ctx, b, q.ID), ErrNotOwner)
	require.NoError(t, e.questions.Delete(ctx, admin, q.ID))

	for _, m := range []any{&models.Question{}, &models.Answer{}, &models.Comment{}, &models.Vote{}, &models.Flag{}} {
		var n int64
		require.NoError(t, e.db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T left behind", m)
	}
}

func TestAnswer_RequiresApprovedQuestion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.member(t, "a@x.com")
	q, err := e.questions.Create(ctx, a, QuestionInput{Title: "t", Description: "d"})
	require.NoError(t, err)

	_, err = e.answers.Create(ctx, a, q.ID, "answer")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAnswer_CreateNotifiesAndCredits(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.member(t, "a@x.com"), e.member(t, "b@x.com")
	q := e.approvedQuestion(t, a, "title")
	before := len(e.hub.to(ws.UserRoom(a.ID)))

	_, err := e.answers.Create(ctx, b, q.ID, "  answer  ")
	require.NoError(t, err)
	assert.Equal(t, XPAnswer, e.reload(t, b.ID).XP)

	calls := e.hub.to(ws.UserRoom(a.ID))
	require.Len(t, calls, before+1)
	assert.Equal(t, ws.EventNotification, calls[len(calls)-1].Event)

	var n int64
	require.NoError(t, e.db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", a.ID, NotifyAnswer).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestAnswer_Accept(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, c := e.member(t, "a@x.com"), e.member(t, "b@x.com"), e.member(t, "c@x.com")
	q := e.approvedQuestion(t, a, "title")
	first, err := e.answers.Create(ctx, b, q.ID, "one")
	require.NoError(t, err)
	second, err := e.answers.Create(ctx, c, q.ID, "two")
	require.NoError(t, err)

	_, err = e.answers.Accept(ctx, b, first.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	got, err := e.answers.Accept(ctx, a, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Accepted)
	assert.Equal(t, XPAnswer+XPAccepted, e.reload(t, b.ID).XP)

	// 重复采纳不重复加分
	_, err = e.answers.Accept(ctx, a, first.ID)
	require.NoError(t, err)
	assert.Equal(t, XPAnswer+XPAccepted, e.reload(t, b.ID).XP)

	_, err = e.answers.Accept(ctx, a, second.ID)
	require.NoError(t, err)
	var accepted []models.Answer
	require.NoError(t, e.db.Where("question_id = ? AND accepted = ?", q.ID, true).Find(&accepted).Error)
	require.Len(t, accepted, 1)
	assert.Equal(t, second.ID, accepted[0].ID)
}

func TestAnswer_UpdateAndDeleteOwnership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.member(t, "a@x.com"), e.member(t, "b@x.com")
	q := e.approvedQuestion(t, a, "title")
	ans, err := e.answers.Create(ctx, b, q.ID, "one")
	require.NoError(t, err)

	_, err = e.answers.Update(ctx, a, ans.ID, "hijack")
	assert.ErrorIs(t, err, ErrNotOwner)
	got, err := e.answers.Update(ctx, b, ans.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)

	assert.ErrorIs(t, e.answers.Delete(ctx, a, ans.ID), ErrNotOwner)
	require.NoError(t, e.answers.Delete(ctx, b, ans.ID))
	assert.ErrorIs(t, e.answers.Delete(ctx, b, ans.ID), apperror.ErrNotFound)
}

func TestVote_ConcurrentFirstVoteLastWriterWins(t *testing.T) {
	for _, other := range []models.VoteType{models.VoteDown, models.VoteUp} {
		t.Run(string(other), func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			a, b := e.member(t, "a@x.com"), e.member(t, "b@x.com")
			q := e.approvedQuestion(t, a, "title")
			ans, err := e.answers.Create(ctx, b, q.ID, "one")
			require.NoError(t, err)

			// 在本次插入开始前，另一个请求抢先写入同一 (user, answer)
			fired := false
			require.NoError(t, e.db.Callback().Create().Before("gorm:begin_transaction").Register("test:vote_race", func(tx *gorm.DB) {
				if fired || tx.Statement.Table != "votes" {
					return
				}
				fired = true
				tx.Session(&gorm.Session{NewDB: true}).Exec(
					"INSERT INTO votes (user_id, answer_id, type, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
					a.ID, ans.ID, other, time.Now(), time.Now())
			}))

			sum, err := e.votes.Cast(ctx, a.ID, ans.ID, models.VoteUp)
			require.NoError(t, err)
			require.True(t, fired)
			assert.EqualValues(t, 1, sum.Up)
			assert.EqualValues(t, 0, sum.Down)

			var votes []models.Vote
			require.NoError(t, e.db.Where("answer_id = ?", ans.ID).Find(&votes).Error)
			require.Len(t, votes, 1)
			assert.Equal(t, models.VoteUp, votes[0].Type)
		})
	}
}

func TestVote_Toggle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.member(t, "a@x.com"), e.member(t, "b@x.com")
	q := e.approvedQuestion(t, a, "title")
	ans, err := e.answers.Create(ctx, b, q.ID, "one")
	require.NoError(t, err)

	sum, err := e.votes.Cast(ctx, a.ID, ans.ID, models.VoteUp)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.Up)
	require.NotNil(t, sum.Mine)
	assert.Equal(t, models.VoteUp, *sum.Mine)

	sum, err = e.votes.Cast(ctx, a.ID, ans.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Zero(t, sum.Up+sum.Down, "same vote twice removes it")
	assert.Nil(t, sum.Mine)

	_, err = e.votes.Cast(ctx, a.ID, ans.ID, models.VoteUp)
	require.NoError(t, err)
	sum, err = e.votes.Cast(ctx, a.ID, ans.ID, models.VoteDown)
	require.NoError(t, err)
	assert.EqualValues(t, 0, sum.Up)
	assert.EqualValues(t, 1, sum.Down)
	assert.EqualValues(t, -1, sum.Score)

	var votes []models.Vote
	require.NoError(t, e.db.Where("answer_id = ?", ans.ID).Find(&votes).Error)
	require.Len(t, votes, 1)
	assert.Equal(t, models.VoteDown, votes[0].Type)

	_, err = e.votes.Cast(ctx, a.ID, ans.ID, models.VoteType("SIDEWAYS"))
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = e.votes.Cast(ctx, a.ID, 9999, models.VoteUp)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestQuestion_GetIncludesScores(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, c := e.member(t, "a@x.com"), e.member(t, "b@x.com"), e.member(t, "c@x.com")
	q := e.approvedQuestion(t, a, "title")
	ans, err := e.answers.Create(ctx, b, q.ID, "one")
	require.NoError(t, err)
	_, err = e.votes.Cast(ctx, a.ID, ans.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = e.votes.Cast(ctx, c.ID, ans.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, c, ans.ID, "nice")
	require.NoError(t, err)

	got, err := e.questions.Get(ctx, Actor{}, q.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 1)
	assert.Equal(t, 2, got.Answers[0].Score)
	require.Len(t, got.Answers[0].Comments, 1)
	assert.Equal(t, "c@x.com", got.Answers[0].Comments[0].Author.Email)
}

func TestComment_DeleteOwnerOrAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.member(t, "a@x.com"), e.member(t, "b@x.com")
	admin := e.user(t, "root@x.com", models.RoleAdmin)
	q := e.approvedQuestion(t, a, "title")
	ans, err := e.answers.Create(ctx, b, q.ID, "one")
	require.NoError(t, err)
	c1, err := e.comments.Create(ctx, a, ans.ID, "first")
	require.NoError(t, err)
	c2, err := e.comments.Create(ctx, a, ans.ID, "second")
	require.NoError(t, err)

	assert.ErrorIs(t, e.comments.Delete(ctx, b, c1.ID), ErrNotOwner)
	require.NoError(t, e.comments.Delete(ctx, a, c1.ID))
	require.NoError(t, e.comments.Delete(ctx, admin, c2.ID))

	list, err := e.comments.ListByAnswer(ctx, ans.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTags_FollowToggleAndCounts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.member(t, "a@x.com")
	e.approvedQuestion(t, a, "one", "go")
	e.approvedQuestion(t, a, "two", "go", "sql")

	tags, err := e.tags.List(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "go", tags[0].Name)
	assert.EqualValues(t, 2, tags[0].Questions)

	following, err := e.tags.ToggleFollow(ctx, a.ID, tags[1].ID)
	require.NoError(t, err)
	assert.True(t, following)
	followed, err := e.tags.Followed(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, followed, 1)

	following, err = e.tags.ToggleFollow(ctx, a.ID, tags[1].ID)
	require.NoError(t, err)
	assert.False(t, following)

	_, err = e.tags.Create(ctx, "GO")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestFlag_DuplicateConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.member(t, "a@x.com"), e.member(t, "b@x.com")
	q := e.approvedQuestion(t, a, "title")

	_, err := e.flags.Create(ctx, b, FlagInput{TargetType: "Question", TargetID: q.ID, Reason: "spam"})
	require.NoError(t, err)
	_, err = e.flags.Create(ctx, b, FlagInput{TargetType: "question", TargetID: q.ID, Reason: "again"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = e.flags.Create(ctx, b, FlagInput{TargetType: "tag", TargetID: 1, Reason: "x"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = e.flags.Create(ctx, b, FlagInput{TargetType: "answer", TargetID: 999, Reason: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	flags, err := e.flags.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "b@x.com", flags[0].Reporter.Email)
}

func TestAdmin_DeleteByKind(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.member(t, "a@x.com")
	q := e.approvedQuestion(t, a, "title", "go")
	tags, err := e.tags.List(ctx)
	require.NoError(t, err)
	_, err = e.tags.ToggleFollow(ctx, a.ID, tags[0].ID)
	require.NoError(t, err)

	require.NoError(t, e.admin.Delete(ctx, models.TargetTag, tags[0].ID))
	got, err := e.questions.Get(ctx, a, q.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	assert.ErrorIs(t, e.admin.Delete(ctx, models.TargetAnswer, 42), apperror.ErrNotFound)
	require.NoError(t, e.admin.Delete(ctx, models.TargetQuestion, q.ID))
}
