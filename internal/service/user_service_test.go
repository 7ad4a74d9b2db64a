package service

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"whisp/internal/model"
	"whisp/pkg/events"
	"whisp/pkg/jwt"
	"whisp/pkg/websocket"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRevoker struct {
	revoked map[string]time.Duration
}

func (r *memoryRevoker) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.revoked[jti] = ttl
	return nil
}

func (r *memoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := r.revoked[jti]
	return ok, nil
}

type staticPresence map[uint]bool

func (p staticPresence) IsOnline(_ context.Context, userID uint) (bool, error) {
	return p[userID], nil
}

func claimsFor(userID uint, jti string, issuedAt time.Time) *jwt.CustomClaims {
	return &jwt.CustomClaims{RegisteredClaims: jwtv5.RegisteredClaims{
		ID:        jti,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwtv5.NewNumericDate(issuedAt),
		ExpiresAt: jwtv5.NewNumericDate(issuedAt.Add(time.Hour)),
	}}
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)

	user, token, err := e.users.Register(e.ctx, "alice", "Alice@Example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsEmailVerified)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	verifications := e.pub.byTopic(events.TopicEmailVerification)
	require.Len(t, verifications, 1)
	assert.Equal(t, "alice@example.com", verifications[0].Data["email"])
	assert.Equal(t, user.EmailVerificationToken, verifications[0].Data["token"])
	assert.Len(t, e.pub.byTopic(events.TopicUserRegistered), 1)

	_, _, err = e.users.Register(e.ctx, "alice", "other@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, _, err = e.users.Register(e.ctx, "alice2", "alice@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidState)

	for _, identifier := range []string{"alice", "alice@example.com", "ALICE@example.com"} {
		got, _, err := e.users.Login(e.ctx, identifier, "secret123")
		require.NoError(t, err, identifier)
		assert.Equal(t, user.ID, got.ID)
	}
	_, _, err = e.users.Login(e.ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, _, err = e.users.Login(e.ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{name: "short username", username: "ab", email: "ab@example.com", password: "secret123"},
		{name: "long username", username: strings.Repeat("a", 33), email: "a@example.com", password: "secret123"},
		{name: "username with space", username: "al ice", email: "a@example.com", password: "secret123"},
		{name: "username with tab", username: "al\tice", email: "a@example.com", password: "secret123"},
		{name: "username with at sign", username: "al@ice", email: "a@example.com", password: "secret123"},
		{name: "missing email", username: "alice", email: "", password: "secret123"},
		{name: "bad email", username: "alice", email: "not-an-email", password: "secret123"},
		{name: "short password", username: "alice", email: "a@example.com", password: "12345"},
		{name: "overlong password", username: "alice", email: "a@example.com", password: strings.Repeat("p", 73)},
		{name: "multibyte password over bcrypt limit", username: "alice", email: "a@example.com", password: strings.Repeat("密", 25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.users.Register(e.ctx, tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestVerifyEmail(t *testing.T) {
	e := newTestEnv(t)
	user, _, err := e.users.Register(e.ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = e.users.VerifyEmail(e.ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidState)

	verified, err := e.users.VerifyEmail(e.ctx, user.EmailVerificationToken)
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)

	// 令牌只能使用一次
	_, err = e.users.VerifyEmail(e.ctx, user.EmailVerificationToken)
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.ErrorIs(t, e.users.ResendVerification(e.ctx, "alice@example.com"), ErrInvalidState)
	assert.ErrorIs(t, e.users.ResendVerification(e.ctx, "nobody@example.com"), ErrNotFound)
}

func TestVerifyEmailExpired(t *testing.T) {
	e := newTestEnv(t)
	user, _, err := e.users.Register(e.ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, e.store.Users.Updates(e.ctx, user.ID, map[string]interface{}{
		"email_verification_expires": time.Now().Add(-time.Minute),
	}))
	_, err = e.users.VerifyEmail(e.ctx, user.EmailVerificationToken)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, e.users.ResendVerification(e.ctx, "alice@example.com"))
	sent := e.pub.byTopic(events.TopicEmailVerification)
	require.Len(t, sent, 2)
	fresh, _ := sent[1].Data["token"].(string)
	assert.NotEqual(t, user.EmailVerificationToken, fresh)

	verified, err := e.users.VerifyEmail(e.ctx, fresh)
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)
}

func TestCheckToken(t *testing.T) {
	e := newTestEnv(t)
	revoker := &memoryRevoker{revoked: map[string]time.Duration{}}
	e.users.WithRevoker(revoker)
	user, _, err := e.users.Register(e.ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	old := claimsFor(user.ID, "old", time.Now().Add(-time.Hour))
	require.NoError(t, e.users.CheckToken(e.ctx, old))

	// 修改密码后，之前签发的令牌失效
	_, err = e.users.ChangePassword(e.ctx, user.ID, "wrong", "newsecret")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.users.ChangePassword(e.ctx, user.ID, "secret123", "123")
	assert.ErrorIs(t, err, ErrValidation)
	token, err := e.users.ChangePassword(e.ctx, user.ID, "secret123", "newsecret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.ErrorIs(t, e.users.CheckToken(e.ctx, old), ErrUnauthorized)

	current := claimsFor(user.ID, "current", time.Now())
	require.NoError(t, e.users.CheckToken(e.ctx, current))

	require.NoError(t, e.users.Logout(e.ctx, current))
	assert.Contains(t, revoker.revoked, "current")
	assert.ErrorIs(t, e.users.CheckToken(e.ctx, current), ErrUnauthorized)

	_, _, err = e.users.Login(e.ctx, "alice", "newsecret")
	assert.NoError(t, err)

	assert.ErrorIs(t, e.users.CheckToken(e.ctx, claimsFor(9999, "ghost", time.Now())), ErrUnauthorized)
}

func TestPasswordChangeRejectsTokensFromSameSecond(t *testing.T) {
	e := newTestEnv(t)
	user, _, err := e.users.Register(e.ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	justBefore := claimsFor(user.ID, "just-before", time.Now())
	require.NoError(t, e.users.CheckToken(e.ctx, justBefore))

	_, err = e.users.ChangePassword(e.ctx, user.ID, "secret123", "newsecret")
	require.NoError(t, err)

	assert.ErrorIs(t, e.users.CheckToken(e.ctx, justBefore), ErrUnauthorized)
	assert.NoError(t, e.users.CheckToken(e.ctx, claimsFor(user.ID, "after", time.Now())))
}

func TestGetProfile(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.users.WithPresence(staticPresence{bob.ID: true})
	carol := e.createUser(t, "carol")
	e.befriend(t, alice, carol)
	e.befriend(t, bob, carol)
	e.befriend(t, alice, bob)

	profile, err := e.users.GetProfile(e.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", profile.Username)
	assert.Empty(t, profile.Email)
	assert.Equal(t, StatusFriends, profile.Status)
	assert.Equal(t, 2, profile.FriendsCount)
	assert.Equal(t, 1, profile.MutualFriendsCount)
	assert.True(t, profile.IsOnline)

	self, err := e.users.GetProfile(e.ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSelf, self.Status)
	assert.Equal(t, "alice@example.com", self.Email)

	require.NoError(t, e.relations.Block(e.ctx, bob.ID, alice.ID))
	_, err = e.users.GetProfile(e.ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.users.GetProfile(e.ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfilePresenceFromLocalConnections(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	manager := websocket.NewManager()
	e.users.WithPresence(manager)

	profile, err := e.users.GetProfile(e.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, profile.IsOnline)

	client := websocket.NewClient(bob.ID, nil)
	manager.AddClient(client)
	profile, err = e.users.GetProfile(e.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, profile.IsOnline)

	require.True(t, manager.RemoveClient(client))
	profile, err = e.users.GetProfile(e.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, profile.IsOnline)
}

func TestUpdateProfileAndSearch(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	e.createUser(t, "bob")
	e.createUser(t, "bobby_tables")

	bio := "  hello world  "
	updated, err := e.users.UpdateProfile(e.ctx, alice.ID, ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "hello world", updated.Bio)
	assert.Equal(t, "alice", updated.Username)

	taken := "bob"
	_, err = e.users.UpdateProfile(e.ctx, alice.ID, ProfileUpdate{Username: &taken})
	assert.ErrorIs(t, err, ErrInvalidState)

	same := "alice"
	_, err = e.users.UpdateProfile(e.ctx, alice.ID, ProfileUpdate{Username: &same})
	assert.NoError(t, err)

	long := strings.Repeat("b", 161)
	_, err = e.users.UpdateProfile(e.ctx, alice.ID, ProfileUpdate{Bio: &long})
	assert.ErrorIs(t, err, ErrValidation)

	found, err := e.users.SearchUsers(e.ctx, alice.ID, "BOB")
	require.NoError(t, err)
	names := make([]string, 0, len(found))
	for _, u := range found {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"bob", "bobby_tables"}, names)

	// 通配符按字面匹配
	found, err = e.users.SearchUsers(e.ctx, alice.ID, "_")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bobby_tables", found[0].Username)

	_, err = e.users.SearchUsers(e.ctx, alice.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteAccountCascades(t *testing.T) {
	e := newTestEnv(t)
	u := e.createUser(t, "doomed")
	friend := e.createUser(t, "friend")
	requester := e.createUser(t, "requester")
	blocker := e.createUser(t, "blocker")
	e.befriend(t, u, friend)
	require.NoError(t, e.relations.SendRequest(e.ctx, requester.ID, u.ID))
	require.NoError(t, e.relations.Block(e.ctx, blocker.ID, u.ID))

	own := e.post(t, u, "mine")
	other := e.post(t, friend, "theirs")
	view, err := e.whispers.AddComment(e.ctx, u.ID, other.ID, "comment by doomed")
	require.NoError(t, err)
	_, err = e.whispers.React(e.ctx, u.ID, ReactionTarget{WhisperID: other.ID}, model.ReactionLike)
	require.NoError(t, err)
	_, err = e.whispers.React(e.ctx, friend.ID, ReactionTarget{WhisperID: own.ID}, model.ReactionLike)
	require.NoError(t, err)
	_, err = e.messages.SendMessage(e.ctx, friend.ID, u.ID, "hi")
	require.NoError(t, err)

	require.NoError(t, e.users.DeleteAccount(e.ctx, u.ID))
	assert.ErrorIs(t, e.users.DeleteAccount(e.ctx, u.ID), ErrNotFound)

	friends, err := e.relations.ListFriends(e.ctx, friend.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
	outgoing, err := e.relations.ListOutgoing(e.ctx, requester.ID)
	require.NoError(t, err)
	assert.Empty(t, outgoing)
	blocked, err := e.relations.ListBlocked(e.ctx, blocker.ID)
	require.NoError(t, err)
	assert.Empty(t, blocked)

	feed, err := e.feed.GetPublicWhispers(e.ctx, PageRequest{})
	require.NoError(t, err)
	require.Len(t, feed.Whispers, 1)
	assert.Equal(t, other.ID, feed.Whispers[0].ID)
	assert.Empty(t, feed.Whispers[0].Comments)
	assert.Empty(t, feed.Whispers[0].Likes)

	_, err = e.store.Whispers.GetComment(e.ctx, other.ID, view.Comments[0].ID)
	assert.True(t, isNotFound(err))

	messages, err := e.store.Messages.ListConversation(e.ctx, friend.ID, u.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
