package service

import (
	"context"

	"whisp/internal/repository"
)

// Relations 某个用户的关系快照（好友集合、拉黑集合），每次请求从存储重新读取
type Relations struct {
	UserID  uint
	Friends map[uint]struct{}
	Blocked map[uint]struct{}
}

// NewRelations 由ID列表构建快照
func NewRelations(userID uint, friendIDs, blockedIDs []uint) Relations {
	r := Relations{
		UserID:  userID,
		Friends: make(map[uint]struct{}, len(friendIDs)),
		Blocked: make(map[uint]struct{}, len(blockedIDs)),
	}
	for _, id := range friendIDs {
		r.Friends[id] = struct{}{}
	}
	for _, id := range blockedIDs {
		r.Blocked[id] = struct{}{}
	}
	return r
}

func (r Relations) IsFriend(id uint) bool {
	_, ok := r.Friends[id]
	return ok
}

func (r Relations) HasBlocked(id uint) bool {
	_, ok := r.Blocked[id]
	return ok
}

// loadRelations 读取用户当前的关系快照
func loadRelations(ctx context.Context, store *repository.Store, userID uint) (Relations, error) {
	friendIDs, err := store.Relations.FriendIDs(ctx, userID)
	if err != nil {
		return Relations{}, storeErr(err, "load friends")
	}
	blockedIDs, err := store.Relations.BlockedIDs(ctx, userID)
	if err != nil {
		return Relations{}, storeErr(err, "load blocked users")
	}
	return NewRelations(userID, friendIDs, blockedIDs), nil
}

// eitherBlocks 任一方拉黑另一方
func eitherBlocks(a, b Relations) bool {
	return a.HasBlocked(b.UserID) || b.HasBlocked(a.UserID)
}

// CanMessage 双方互为好友且互不拉黑时才能发私信
func CanMessage(actor, target Relations) error {
	if !actor.IsFriend(target.UserID) || !target.IsFriend(actor.UserID) {
		return forbidden("you can only message friends")
	}
	if eitherBlocks(actor, target) {
		return forbidden("messaging is blocked between these users")
	}
	return nil
}

// InTimeline 作者是否出现在 viewer 的时间线中
// 只检查 viewer 自己的拉黑列表：被好友拉黑的用户仍能看到该好友的内容
func InTimeline(viewer Relations, authorID uint) bool {
	if authorID == viewer.UserID {
		return true
	}
	return viewer.IsFriend(authorID) && !viewer.HasBlocked(authorID)
}

// TimelineAuthors viewer 时间线允许的作者集合（自己 + 未被自己拉黑的好友）
func TimelineAuthors(viewer Relations) []uint {
	ids := []uint{viewer.UserID}
	for id := range viewer.Friends {
		if InTimeline(viewer, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// CanComment 评论/回复：Whisper 作者本人，或与作者为好友且互不拉黑
func CanComment(actor, owner Relations) error {
	if actor.UserID == owner.UserID {
		return nil
	}
	if !actor.IsFriend(owner.UserID) {
		return forbidden("only friends can comment on this whisper")
	}
	if eitherBlocks(actor, owner) {
		return forbidden("commenting is blocked between these users")
	}
	return nil
}

// CanEdit 评论/回复只能由作者本人编辑
func CanEdit(actorID, authorID uint) error {
	if actorID != authorID {
		return forbidden("only the author can edit this")
	}
	return nil
}

// CanDelete 评论/回复可由作者本人或所属 Whisper 的作者删除
func CanDelete(actorID, authorID, whisperOwnerID uint) error {
	if actorID != authorID && actorID != whisperOwnerID {
		return forbidden("only the author or the whisper owner can delete this")
	}
	return nil
}
