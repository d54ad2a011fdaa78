package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stackit/internal/apperror"
	"stackit/internal/auth"
	"stackit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTP_VerifySucceedsExactlyOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.otp.Request(ctx, "A@X.com"))
	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, "a@x.com", e.mailer.sent[0].to)
	assert.Contains(t, e.mailer.sent[0].body, "123456")

	require.NoError(t, e.otp.Verify(ctx, "a@x.com", "123456"))
	err := e.otp.Verify(ctx, "a@x.com", "123456")
	assert.True(t, errors.Is(err, ErrInvalidOTP), "second verify must fail, got %v", err)

	ok, err := e.otp.Verified(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTP_MismatchKeepsCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.otp.Request(ctx, "a@x.com"))

	assert.ErrorIs(t, e.otp.Verify(ctx, "a@x.com", "000000"), ErrInvalidOTP)
	assert.NoError(t, e.otp.Verify(ctx, "a@x.com", "123456"))
}

func TestOTP_Expires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.otp.Request(ctx, "a@x.com"))

	e.mr.FastForward(11 * time.Minute)
	assert.ErrorIs(t, e.otp.Verify(ctx, "a@x.com", "123456"), ErrInvalidOTP)
}

func TestGenerateCode_SixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}

func verify(t *testing.T, e *env, email string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.otp.Request(ctx, email))
	require.NoError(t, e.otp.Verify(ctx, email, "123456"))
}

func TestSignup_RequiresVerifiedFlag(t *testing.T) {
	e := newEnv(t)
	_, err := e.users.Signup(context.Background(), SignupInput{Email: "a@x.com", DisplayName: "A", Password: "password1"})
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestSignup_ConsumesFlag(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	verify(t, e, "a@x.com")

	res, err := e.users.Signup(ctx, SignupInput{Email: "a@x.com", DisplayName: "Alice", Password: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, models.RoleMember, res.User.Role)

	claims, err := e.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	ok, err := e.otp.Verified(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok, "verified flag must be single use")

	_, err = e.users.Signup(ctx, SignupInput{Email: "a@x.com", DisplayName: "Alice", Password: "password1"})
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestSignup_ExistingEmailConflicts(t *testing.T) {
	e := newEnv(t)
	e.member(t, "a@x.com")
	verify(t, e, "a@x.com")

	_, err := e.users.Signup(context.Background(), SignupInput{Email: "a@x.com", DisplayName: "A", Password: "password1"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    SignupInput
		field string
	}{
		{"short password", SignupInput{Email: "a@x.com", DisplayName: "A", Password: "short"}, "password"},
		{"blank name", SignupInput{Email: "a@x.com", DisplayName: "  ", Password: "password1"}, "displayName"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			verify(t, e, "a@x.com")
			_, err := e.users.Signup(context.Background(), tt.in)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)

			// 校验失败不消耗 verified 标记
			ok, err := e.otp.Verified(context.Background(), "a@x.com")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestSignup_UnverifiedIgnoresPayload(t *testing.T) {
	e := newEnv(t)
	for _, in := range []SignupInput{
		{Email: "nobody@x.com", DisplayName: "", Password: "x"},
		{Email: "", DisplayName: "", Password: ""},
		{Email: "nobody@x.com", DisplayName: "Nobody", Password: "password1"},
	} {
		_, err := e.users.Signup(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmailNotVerified, "%+v", in)
	}
}

func TestSignin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	verify(t, e, "a@x.com")
	_, err := e.users.Signup(ctx, SignupInput{Email: "a@x.com", DisplayName: "Alice", Password: "password1"})
	require.NoError(t, err)

	res, err := e.users.Signin(ctx, "A@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.User.Email)

	_, err = e.users.Signin(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = e.users.Signin(ctx, "nobody@x.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestOAuthLogin_CreatesThenReuses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.users.OAuthLogin(ctx, auth.ProviderIdentity{Email: "Gh@X.com", AvatarURL: "https://a/1.png"})
	require.NoError(t, err)
	assert.Equal(t, "gh", first.User.DisplayName)
	assert.Nil(t, first.User.PasswordHash)

	second, err := e.users.OAuthLogin(ctx, auth.ProviderIdentity{Email: "gh@x.com", Name: "Other"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	// OAuth 身份没有密码，不能走密码登录
	_, err = e.users.Signin(ctx, "gh@x.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.member(t, "a@x.com")

	name, bio := "  New Name ", "hello"
	u, err := e.users.UpdateProfile(ctx, a.ID, ProfileInput{DisplayName: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.DisplayName)
	assert.Equal(t, "hello", u.Bio)

	empty := " "
	_, err = e.users.UpdateProfile(ctx, a.ID, ProfileInput{DisplayName: &empty})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.users.PublicProfile(ctx, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestNextStreak(t *testing.T) {
	day := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		last   *time.Time
		streak int
		now    time.Time
		want   int
	}{
		{"first activity", nil, 0, day, 1},
		{"same day", &day, 3, day.Add(time.Hour), 3},
		{"next day", &day, 3, day.Add(4 * time.Hour), 4},
		{"gap", &day, 3, day.Add(50 * time.Hour), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextStreak(tt.last, tt.streak, tt.now))
		})
	}
}

func TestReputation_Credit(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a@x.com")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rep := e.rep.WithClock(func() time.Time { return now })

	require.NoError(t, rep.Credit(e.db, a.ID, XPQuestion))
	require.NoError(t, rep.Credit(e.db, a.ID, XPAnswer))
	u := e.reload(t, a.ID)
	assert.Equal(t, 15, u.XP)
	assert.Equal(t, 1, u.Streak)

	now = now.Add(24 * time.Hour)
	require.NoError(t, rep.Credit(e.db, a.ID, XPAnswer))
	u = e.reload(t, a.ID)
	assert.Equal(t, 25, u.XP)
	assert.Equal(t, 2, u.Streak)

	require.NoError(t, rep.Grant(e.db, a.ID, XPAccepted))
	assert.Equal(t, 40, e.reload(t, a.ID).XP)
}
