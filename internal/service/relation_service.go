package service

import (
	"context"

	"whisp/internal/model"
	"whisp/internal/repository"
	"whisp/pkg/events"

	"github.com/pkg/errors"
)

// maxVersionRetries 乐观锁冲突时的最大尝试次数
const maxVersionRetries = 3

// 个人主页上展示的关系状态
const (
	StatusSelf            = "self"
	StatusFriends         = "friends"
	StatusRequestSent     = "request_sent"
	StatusRequestReceived = "request_received"
	StatusBlocked         = "blocked"
	StatusNone            = "none"
)

// MutualFriends 共同好友
type MutualFriends struct {
	Users []*UserSummary `json:"mutualFriends"`
	Count int            `json:"count"`
}

// RelationService 好友请求、好友、拉黑
type RelationService struct {
	store     *repository.Store
	publisher events.Publisher
}

// NewRelationService 创建RelationService实例
func NewRelationService(store *repository.Store, publisher events.Publisher) *RelationService {
	return &RelationService{store: store, publisher: publisher}
}

// SendRequest actor 向 target 发送好友请求
func (s *RelationService) SendRequest(ctx context.Context, actorID, targetID uint) error {
	if actorID == targetID {
		return invalidState("you cannot send a friend request to yourself")
	}

	var actorName string
	err := withVersionRetry(ctx, s.store, func(tx *repository.Store) error {
		actor, target, err := loadPair(ctx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		actorName = actor.Username

		friends, err := tx.Relations.AreFriends(ctx, actorID, targetID)
		if err != nil {
			return storeErr(err, "check friendship")
		}
		if friends {
			return invalidState("you are already friends")
		}
		pending, err := tx.Relations.HasRequest(ctx, actorID, targetID)
		if err != nil {
			return storeErr(err, "check friend request")
		}
		if pending {
			return invalidState("friend request already sent")
		}
		blocked, err := tx.Relations.IsBlocked(ctx, targetID, actorID)
		if err != nil {
			return storeErr(err, "check block")
		}
		if blocked {
			return forbidden("you cannot send a friend request to this user")
		}

		if err := tx.Relations.CreateRequest(ctx, actorID, targetID); err != nil {
			return storeErr(err, "create friend request")
		}
		return bumpVersions(ctx, tx, actor, target)
	})
	if err != nil {
		return err
	}

	publish(ctx, s.publisher, events.TopicFriendRequestSent, events.Event{
		RecipientID: targetID,
		ActorID:     actorID,
		Data:        map[string]interface{}{"username": actorName},
	})
	return nil
}

// CancelRequest 撤回自己发出的好友请求
func (s *RelationService) CancelRequest(ctx context.Context, actorID, targetID uint) error {
	return withVersionRetry(ctx, s.store, func(tx *repository.Store) error {
		actor, target, err := loadPair(ctx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		n, err := tx.Relations.DeleteRequest(ctx, actorID, targetID)
		if err != nil {
			return storeErr(err, "delete friend request")
		}
		if n == 0 {
			return invalidState("no pending friend request to this user")
		}
		return bumpVersions(ctx, tx, actor, target)
	})
}

// AcceptRequest actor 接受 sender 的请求；两人已是好友时清理残留请求后返回 InvalidState
func (s *RelationService) AcceptRequest(ctx context.Context, actorID, senderID uint) error {
	var alreadyFriends bool
	var actorName string
	err := withVersionRetry(ctx, s.store, func(tx *repository.Store) error {
		alreadyFriends = false
		actor, sender, err := loadPair(ctx, tx, actorID, senderID)
		if err != nil {
			return err
		}
		actorName = actor.Username

		n, err := tx.Relations.DeleteRequest(ctx, senderID, actorID)
		if err != nil {
			return storeErr(err, "delete friend request")
		}
		if n == 0 {
			return invalidState("no pending friend request from this user")
		}

		friends, err := tx.Relations.AreFriends(ctx, actorID, senderID)
		if err != nil {
			return storeErr(err, "check friendship")
		}
		if friends {
			alreadyFriends = true
		} else if err := tx.Relations.AddFriendship(ctx, actorID, senderID); err != nil {
			return storeErr(err, "add friendship")
		}
		// 反方向的请求随之失效
		if _, err := tx.Relations.DeleteRequest(ctx, actorID, senderID); err != nil {
			return storeErr(err, "delete friend request")
		}
		return bumpVersions(ctx, tx, actor, sender)
	})
	if err != nil {
		return err
	}
	if alreadyFriends {
		return invalidState("you are already friends")
	}

	publish(ctx, s.publisher, events.TopicFriendAccepted, events.Event{
		RecipientID: senderID,
		ActorID:     actorID,
		Data:        map[string]interface{}{"username": actorName},
	})
	return nil
}

// RejectRequest 拒绝请求；请求不存在时同样视为成功
func (s *RelationService) RejectRequest(ctx context.Context, actorID, senderID uint) error {
	return withVersionRetry(ctx, s.store, func(tx *repository.Store) error {
		actor, sender, err := loadPair(ctx, tx, actorID, senderID)
		if err != nil {
			return err
		}
		n, err := tx.Relations.DeleteRequest(ctx, senderID, actorID)
		if err != nil {
			return storeErr(err, "delete friend request")
		}
		if n == 0 {
			return nil
		}
		return bumpVersions(ctx, tx, actor, sender)
	})
}

// RemoveFriend 解除好友关系，双向同时删除
func (s *RelationService) RemoveFriend(ctx context.Context, actorID, targetID uint) error {
	return withVersionRetry(ctx, s.store, func(tx *repository.Store) error {
		actor, target, err := loadPair(ctx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		if err := tx.Relations.RemoveFriendship(ctx, actorID, targetID); err != nil {
			return storeErr(err, "remove friendship")
		}
		return bumpVersions(ctx, tx, actor, target)
	})
}

// Block 拉黑：同时解除好友关系并清除双方之间的请求
func (s *RelationService) Block(ctx context.Context, actorID, targetID uint) error {
	if actorID == targetID {
		return invalidState("you cannot block yourself")
	}
	return withVersionRetry(ctx, s.store, func(tx *repository.Store) error {
		actor, target, err := loadPair(ctx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		blocked, err := tx.Relations.IsBlocked(ctx, actorID, targetID)
		if err != nil {
			return storeErr(err, "check block")
		}
		if blocked {
			return invalidState("user is already blocked")
		}

		if err := tx.Relations.CreateBlock(ctx, actorID, targetID); err != nil {
			return storeErr(err, "create block")
		}
		if err := tx.Relations.RemoveFriendship(ctx, actorID, targetID); err != nil {
			return storeErr(err, "remove friendship")
		}
		if err := tx.Relations.DeleteRequestsBetween(ctx, actorID, targetID); err != nil {
			return storeErr(err, "delete friend requests")
		}
		return bumpVersions(ctx, tx, actor, target)
	})
}

// Unblock 取消拉黑，不恢复之前的好友关系
func (s *RelationService) Unblock(ctx context.Context, actorID, targetID uint) error {
	return withVersionRetry(ctx, s.store, func(tx *repository.Store) error {
		actor, err := getUser(ctx, tx, actorID)
		if err != nil {
			return err
		}
		n, err := tx.Relations.DeleteBlock(ctx, actorID, targetID)
		if err != nil {
			return storeErr(err, "delete block")
		}
		if n == 0 {
			return invalidState("user is not blocked")
		}
		return bumpVersions(ctx, tx, actor)
	})
}

// ListFriends 好友列表，不含自己拉黑的用户
func (s *RelationService) ListFriends(ctx context.Context, actorID uint) ([]*UserSummary, error) {
	rel, err := loadRelations(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rel.Friends))
	for id := range rel.Friends {
		if !rel.HasBlocked(id) {
			ids = append(ids, id)
		}
	}
	return s.summaries(ctx, ids)
}

// ListIncoming 收到的待处理请求
func (s *RelationService) ListIncoming(ctx context.Context, actorID uint) ([]*UserSummary, error) {
	ids, err := s.store.Relations.IncomingIDs(ctx, actorID)
	if err != nil {
		return nil, storeErr(err, "list incoming requests")
	}
	return s.summaries(ctx, ids)
}

// ListOutgoing 发出的待处理请求
func (s *RelationService) ListOutgoing(ctx context.Context, actorID uint) ([]*UserSummary, error) {
	ids, err := s.store.Relations.OutgoingIDs(ctx, actorID)
	if err != nil {
		return nil, storeErr(err, "list outgoing requests")
	}
	return s.summaries(ctx, ids)
}

func (s *RelationService) ListBlocked(ctx context.Context, actorID uint) ([]*UserSummary, error) {
	ids, err := s.store.Relations.BlockedIDs(ctx, actorID)
	if err != nil {
		return nil, storeErr(err, "list blocked users")
	}
	return s.summaries(ctx, ids)
}

// MutualFriends 两人好友集合的交集
func (s *RelationService) MutualFriends(ctx context.Context, actorID, otherID uint) (*MutualFriends, error) {
	if _, err := getUser(ctx, s.store, otherID); err != nil {
		return nil, err
	}
	ids, err := mutualFriendIDs(ctx, s.store, actorID, otherID)
	if err != nil {
		return nil, err
	}
	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &MutualFriends{Users: users, Count: len(users)}, nil
}

// Status viewer 视角下与 other 的关系状态
func (s *RelationService) Status(ctx context.Context, viewerID, otherID uint) (string, error) {
	if viewerID == otherID {
		return StatusSelf, nil
	}
	checks := []struct {
		status string
		check  func() (bool, error)
	}{
		{StatusBlocked, func() (bool, error) { return s.store.Relations.IsBlocked(ctx, viewerID, otherID) }},
		{StatusFriends, func() (bool, error) { return s.store.Relations.AreFriends(ctx, viewerID, otherID) }},
		{StatusRequestSent, func() (bool, error) { return s.store.Relations.HasRequest(ctx, viewerID, otherID) }},
		{StatusRequestReceived, func() (bool, error) { return s.store.Relations.HasRequest(ctx, otherID, viewerID) }},
	}
	for _, c := range checks {
		ok, err := c.check()
		if err != nil {
			return "", storeErr(err, "load relation status")
		}
		if ok {
			return c.status, nil
		}
	}
	return StatusNone, nil
}

func (s *RelationService) summaries(ctx context.Context, ids []uint) ([]*UserSummary, error) {
	users, err := s.store.Users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "load users")
	}
	return toSummaries(users), nil
}

func mutualFriendIDs(ctx context.Context, store *repository.Store, a, b uint) ([]uint, error) {
	relA, err := loadRelations(ctx, store, a)
	if err != nil {
		return nil, err
	}
	relB, err := loadRelations(ctx, store, b)
	if err != nil {
		return nil, err
	}
	var ids []uint
	for id := range relA.Friends {
		if relB.IsFriend(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// withVersionRetry 在事务中执行 fn，版本号冲突时整体重试
func withVersionRetry(ctx context.Context, store *repository.Store, fn func(tx *repository.Store) error) error {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		err := store.Transaction(ctx, fn)
		if !errors.Is(err, repository.ErrStaleVersion) {
			return err
		}
	}
	return newError(ErrConflict, "the relationship was modified concurrently, please retry")
}

// bumpVersions 对本次修改涉及的用户做版本号比较并交换
func bumpVersions(ctx context.Context, tx *repository.Store, users ...*model.User) error {
	seen := make(map[uint]bool, len(users))
	for _, u := range users {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		if err := tx.Users.BumpVersion(ctx, u.ID, u.Version); err != nil {
			return err
		}
	}
	return nil
}

func getUser(ctx context.Context, store *repository.Store, id uint) (*model.User, error) {
	u, err := store.Users.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, storeErr(err, "load user")
	}
	return u, nil
}

func loadPair(ctx context.Context, store *repository.Store, actorID, targetID uint) (*model.User, *model.User, error) {
	actor, err := getUser(ctx, store, actorID)
	if err != nil {
		return nil, nil, err
	}
	target, err := getUser(ctx, store, targetID)
	if err != nil {
		return nil, nil, err
	}
	return actor, target, nil
}
