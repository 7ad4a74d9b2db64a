package service

import (
	"context"
	"sort"
	"time"

	"whisp/internal/model"
	"whisp/internal/repository"
)

// UserSummary 内容中引用的作者信息
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Score 点赞/点踩集合及派生分数，读取时计算
type Score struct {
	Likes        []uint `json:"likes"`
	Dislikes     []uint `json:"dislikes"`
	LikeCount    int    `json:"likeCount"`
	DislikeCount int    `json:"dislikeCount"`
	Points       int    `json:"points"`
}

type ReplyView struct {
	ID        uint         `json:"id"`
	User      *UserSummary `json:"user"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"createdAt"`
	Score
}

type CommentView struct {
	ID        uint         `json:"id"`
	User      *UserSummary `json:"user"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"createdAt"`
	Score
	Replies []*ReplyView `json:"replies"`
}

type WhisperView struct {
	ID        uint         `json:"id"`
	User      *UserSummary `json:"user"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
	Score
	Comments []*CommentView `json:"comments"`
}

func newScore(reactions []*model.Reaction) Score {
	s := Score{Likes: []uint{}, Dislikes: []uint{}}
	for _, r := range reactions {
		switch r.Kind {
		case model.ReactionLike:
			s.Likes = append(s.Likes, r.UserID)
		case model.ReactionDislike:
			s.Dislikes = append(s.Dislikes, r.UserID)
		}
	}
	s.LikeCount = len(s.Likes)
	s.DislikeCount = len(s.Dislikes)
	s.Points = s.LikeCount - s.DislikeCount
	return s
}

// newerFirst 按创建时间倒序，时间相同时按ID倒序
func newerFirst(aTime time.Time, aID uint, bTime time.Time, bID uint) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

// composer 将存储中的 Whisper 组装为带作者、分数、排序的视图
type composer struct {
	store *repository.Store
}

func (c composer) composeOne(ctx context.Context, whisper *model.Whisper) (*WhisperView, error) {
	views, err := c.compose(ctx, []*model.Whisper{whisper})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (c composer) compose(ctx context.Context, whispers []*model.Whisper) ([]*WhisperView, error) {
	views := make([]*WhisperView, 0, len(whispers))
	if len(whispers) == 0 {
		return views, nil
	}

	var whisperIDs, commentIDs, replyIDs []uint
	userIDs := map[uint]struct{}{}
	for _, w := range whispers {
		whisperIDs = append(whisperIDs, w.ID)
		userIDs[w.UserID] = struct{}{}
		for _, cm := range w.Comments {
			commentIDs = append(commentIDs, cm.ID)
			userIDs[cm.UserID] = struct{}{}
			for _, rp := range cm.Replies {
				replyIDs = append(replyIDs, rp.ID)
				userIDs[rp.UserID] = struct{}{}
			}
		}
	}

	users, err := c.loadUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	whisperScores, err := c.loadScores(ctx, model.TargetWhisper, whisperIDs)
	if err != nil {
		return nil, err
	}
	commentScores, err := c.loadScores(ctx, model.TargetComment, commentIDs)
	if err != nil {
		return nil, err
	}
	replyScores, err := c.loadScores(ctx, model.TargetReply, replyIDs)
	if err != nil {
		return nil, err
	}

	for _, w := range whispers {
		wv := &WhisperView{
			ID:        w.ID,
			User:      summaryFor(users, w.UserID),
			Content:   w.Content,
			CreatedAt: w.CreatedAt,
			Score:     whisperScores(w.ID),
			Comments:  make([]*CommentView, 0, len(w.Comments)),
		}
		for _, cm := range w.Comments {
			cv := &CommentView{
				ID:        cm.ID,
				User:      summaryFor(users, cm.UserID),
				Text:      cm.Text,
				CreatedAt: cm.CreatedAt,
				Score:     commentScores(cm.ID),
				Replies:   make([]*ReplyView, 0, len(cm.Replies)),
			}
			for _, rp := range cm.Replies {
				cv.Replies = append(cv.Replies, &ReplyView{
					ID:        rp.ID,
					User:      summaryFor(users, rp.UserID),
					Text:      rp.Text,
					CreatedAt: rp.CreatedAt,
					Score:     replyScores(rp.ID),
				})
			}
			sort.SliceStable(cv.Replies, func(i, j int) bool {
				a, b := cv.Replies[i], cv.Replies[j]
				return newerFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
			})
			wv.Comments = append(wv.Comments, cv)
		}
		sort.SliceStable(wv.Comments, func(i, j int) bool {
			a, b := wv.Comments[i], wv.Comments[j]
			return newerFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
		})
		views = append(views, wv)
	}
	return views, nil
}

func (c composer) loadUsers(ctx context.Context, ids map[uint]struct{}) (map[uint]*model.User, error) {
	list := make([]uint, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	users, err := c.store.Users.ListByIDs(ctx, list)
	if err != nil {
		return nil, storeErr(err, "load authors")
	}
	byID := make(map[uint]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// loadScores 批量读取反应，返回按目标ID取分数的函数
func (c composer) loadScores(ctx context.Context, targetType string, ids []uint) (func(uint) Score, error) {
	reactions, err := c.store.Reactions.ListForTargets(ctx, targetType, ids)
	if err != nil {
		return nil, storeErr(err, "load reactions")
	}
	byTarget := make(map[uint][]*model.Reaction)
	for _, r := range reactions {
		byTarget[r.TargetID] = append(byTarget[r.TargetID], r)
	}
	return func(id uint) Score { return newScore(byTarget[id]) }, nil
}

func summaryFor(users map[uint]*model.User, id uint) *UserSummary {
	u, ok := users[id]
	if !ok {
		return &UserSummary{ID: id}
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

func toSummaries(users []*model.User) []*UserSummary {
	out := make([]*UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, &UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar})
	}
	return out
}
