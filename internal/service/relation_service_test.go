package service

import (
	"testing"

	"whisp/internal/repository"
	"whisp/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")

	require.NoError(t, e.relations.SendRequest(e.ctx, alice.ID, bob.ID))

	incoming, err := e.relations.ListIncoming(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, summaryIDs(incoming))

	outgoing, err := e.relations.ListOutgoing(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, summaryIDs(outgoing))

	err = e.relations.SendRequest(e.ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	sent := e.pub.byTopic(events.TopicFriendRequestSent)
	require.Len(t, sent, 1)
	assert.Equal(t, bob.ID, sent[0].RecipientID)
	assert.Equal(t, alice.ID, sent[0].ActorID)
}

func TestSendRequestFailures(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	carol := e.createUser(t, "carol")
	e.befriend(t, alice, carol)
	require.NoError(t, e.relations.Block(e.ctx, bob.ID, alice.ID))

	assert.ErrorIs(t, e.relations.SendRequest(e.ctx, alice.ID, alice.ID), ErrInvalidState)
	assert.ErrorIs(t, e.relations.SendRequest(e.ctx, alice.ID, 9999), ErrNotFound)
	assert.ErrorIs(t, e.relations.SendRequest(e.ctx, alice.ID, carol.ID), ErrInvalidState)
	assert.ErrorIs(t, e.relations.SendRequest(e.ctx, alice.ID, bob.ID), ErrForbidden)
}

func TestAcceptRequestIsSymmetric(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")

	assert.ErrorIs(t, e.relations.AcceptRequest(e.ctx, bob.ID, alice.ID), ErrInvalidState)

	require.NoError(t, e.relations.SendRequest(e.ctx, alice.ID, bob.ID))
	require.NoError(t, e.relations.AcceptRequest(e.ctx, bob.ID, alice.ID))

	aliceFriends, err := e.relations.ListFriends(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, summaryIDs(aliceFriends))
	bobFriends, err := e.relations.ListFriends(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, summaryIDs(bobFriends))

	incoming, err := e.relations.ListIncoming(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)

	accepted := e.pub.byTopic(events.TopicFriendAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, alice.ID, accepted[0].RecipientID)
}

func TestAcceptRequestWhenAlreadyFriendsClearsStaleRequest(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.befriend(t, alice, bob)

	// 绕过服务层写入一条残留请求
	require.NoError(t, e.store.Relations.CreateRequest(e.ctx, alice.ID, bob.ID))

	err := e.relations.AcceptRequest(e.ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	pending, err := e.store.Relations.HasRequest(e.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestCancelRequest(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")

	assert.ErrorIs(t, e.relations.CancelRequest(e.ctx, alice.ID, bob.ID), ErrInvalidState)

	require.NoError(t, e.relations.SendRequest(e.ctx, alice.ID, bob.ID))
	require.NoError(t, e.relations.CancelRequest(e.ctx, alice.ID, bob.ID))

	incoming, err := e.relations.ListIncoming(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestRejectRequestIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")

	assert.NoError(t, e.relations.RejectRequest(e.ctx, bob.ID, alice.ID))

	require.NoError(t, e.relations.SendRequest(e.ctx, alice.ID, bob.ID))
	require.NoError(t, e.relations.RejectRequest(e.ctx, bob.ID, alice.ID))
	assert.NoError(t, e.relations.RejectRequest(e.ctx, bob.ID, alice.ID))

	incoming, err := e.relations.ListIncoming(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)
	friends, err := e.relations.ListFriends(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestBlockSeversRelationship(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.befriend(t, alice, bob)
	require.NoError(t, e.store.Relations.CreateRequest(e.ctx, bob.ID, alice.ID))
	require.NoError(t, e.store.Relations.CreateRequest(e.ctx, alice.ID, bob.ID))

	require.NoError(t, e.relations.Block(e.ctx, alice.ID, bob.ID))

	for _, pair := range [][2]uint{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		friends, err := e.store.Relations.AreFriends(e.ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, friends)
		pending, err := e.store.Relations.HasRequest(e.ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, pending)
	}

	blocked, err := e.relations.ListBlocked(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, summaryIDs(blocked))

	assert.ErrorIs(t, e.relations.Block(e.ctx, alice.ID, bob.ID), ErrInvalidState)
	assert.ErrorIs(t, e.relations.Block(e.ctx, alice.ID, alice.ID), ErrInvalidState)
}

func TestUnblockDoesNotRestoreFriendship(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.befriend(t, alice, bob)
	require.NoError(t, e.relations.Block(e.ctx, alice.ID, bob.ID))

	require.NoError(t, e.relations.Unblock(e.ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, e.relations.Unblock(e.ctx, alice.ID, bob.ID), ErrInvalidState)

	friends, err := e.relations.ListFriends(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestRemoveFriend(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.befriend(t, alice, bob)

	require.NoError(t, e.relations.RemoveFriend(e.ctx, bob.ID, alice.ID))
	assert.ErrorIs(t, e.relations.RemoveFriend(e.ctx, bob.ID, 9999), ErrNotFound)

	for _, u := range []uint{alice.ID, bob.ID} {
		friends, err := e.relations.ListFriends(e.ctx, u)
		require.NoError(t, err)
		assert.Empty(t, friends)
	}
}

func TestMutualFriendsAndStatus(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	carol := e.createUser(t, "carol")
	dave := e.createUser(t, "dave")
	e.befriend(t, alice, carol)
	e.befriend(t, bob, carol)
	e.befriend(t, alice, dave)

	mutual, err := e.relations.MutualFriends(e.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mutual.Count)
	assert.Equal(t, []uint{carol.ID}, summaryIDs(mutual.Users))

	_, err = e.relations.MutualFriends(e.ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, e.relations.SendRequest(e.ctx, alice.ID, bob.ID))
	tests := []struct {
		viewer, other uint
		want          string
	}{
		{alice.ID, alice.ID, StatusSelf},
		{alice.ID, carol.ID, StatusFriends},
		{alice.ID, bob.ID, StatusRequestSent},
		{bob.ID, alice.ID, StatusRequestReceived},
		{bob.ID, dave.ID, StatusNone},
	}
	for _, tt := range tests {
		got, err := e.relations.Status(e.ctx, tt.viewer, tt.other)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	require.NoError(t, e.relations.Block(e.ctx, dave.ID, bob.ID))
	got, err := e.relations.Status(e.ctx, dave.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, got)
}

func TestRelationChangesBumpVersion(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")

	e.befriend(t, alice, bob)

	for _, id := range []uint{alice.ID, bob.ID} {
		u, err := e.store.Users.GetByID(e.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint(2), u.Version)
	}

	// 旧版本号的写入被拒绝
	err := e.store.Users.BumpVersion(e.ctx, alice.ID, 1)
	assert.ErrorIs(t, err, repository.ErrStaleVersion)
}

func TestVersionConflictGivesUpAfterRetries(t *testing.T) {
	e := newTestEnv(t)

	attempts := 0
	err := withVersionRetry(e.ctx, e.store, func(tx *repository.Store) error {
		attempts++
		return repository.ErrStaleVersion
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxVersionRetries, attempts)

	attempts = 0
	err = withVersionRetry(e.ctx, e.store, func(tx *repository.Store) error {
		attempts++
		if attempts < 2 {
			return repository.ErrStaleVersion
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
