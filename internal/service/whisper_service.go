package service

import (
	"context"

	"whisp/config"
	"whisp/internal/model"
	"whisp/internal/repository"
	"whisp/pkg/events"
)

// ReactionTarget 点赞/点踩的目标；CommentID、ReplyID 为 0 表示目标是上一级
type ReactionTarget struct {
	WhisperID uint
	CommentID uint
	ReplyID   uint
}

// Resolve 返回实际被点赞的对象类型与ID
func (t ReactionTarget) Resolve() (string, uint) {
	switch {
	case t.ReplyID != 0:
		return model.TargetReply, t.ReplyID
	case t.CommentID != 0:
		return model.TargetComment, t.CommentID
	default:
		return model.TargetWhisper, t.WhisperID
	}
}

// WhisperService Whisper 及评论、回复、点赞
type WhisperService struct {
	store     *repository.Store
	composer  composer
	publisher events.Publisher
	limits    config.ContentConfig
}

// NewWhisperService 创建WhisperService实例
func NewWhisperService(store *repository.Store, publisher events.Publisher, limits config.ContentConfig) *WhisperService {
	return &WhisperService{
		store:     store,
		composer:  composer{store: store},
		publisher: publisher,
		limits:    limits,
	}
}

// CreateWhisper 发布 Whisper
func (s *WhisperService) CreateWhisper(ctx context.Context, actorID uint, content string) (*WhisperView, error) {
	content, err := checkText(content, s.limits.MaxWhisperLength, "whisper")
	if err != nil {
		return nil, err
	}
	if _, err := getUser(ctx, s.store, actorID); err != nil {
		return nil, err
	}

	whisper := &model.Whisper{UserID: actorID, Content: content}
	if err := s.store.Whispers.Create(ctx, whisper); err != nil {
		return nil, storeErr(err, "create whisper")
	}
	return s.view(ctx, whisper.ID)
}

// DeleteWhisper 删除自己的 Whisper，评论、回复、点赞一并删除
func (s *WhisperService) DeleteWhisper(ctx context.Context, actorID, whisperID uint) error {
	whisper, err := s.getWhisper(ctx, whisperID)
	if err != nil {
		return err
	}
	if whisper.UserID != actorID {
		return forbidden("only the author can delete this whisper")
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Whispers.Delete(ctx, whisperID)
	})
	return storeErr(err, "delete whisper")
}

// AddComment 评论，需为 Whisper 作者本人或其好友
func (s *WhisperService) AddComment(ctx context.Context, actorID, whisperID uint, text string) (*WhisperView, error) {
	text, err := checkText(text, s.limits.MaxCommentLength, "comment")
	if err != nil {
		return nil, err
	}
	whisper, err := s.getWhisper(ctx, whisperID)
	if err != nil {
		return nil, err
	}
	if err := s.checkComment(ctx, actorID, whisper.UserID); err != nil {
		return nil, err
	}

	comment := &model.Comment{WhisperID: whisperID, UserID: actorID, Text: text}
	if err := s.store.Whispers.CreateComment(ctx, comment); err != nil {
		return nil, storeErr(err, "create comment")
	}
	s.notifyOwner(ctx, actorID, whisper, comment.ID)
	return s.view(ctx, whisperID)
}

// EditComment 修改评论，仅评论作者
func (s *WhisperService) EditComment(ctx context.Context, actorID, whisperID, commentID uint, text string) (*WhisperView, error) {
	text, err := checkText(text, s.limits.MaxCommentLength, "comment")
	if err != nil {
		return nil, err
	}
	comment, err := s.getComment(ctx, whisperID, commentID)
	if err != nil {
		return nil, err
	}
	if err := CanEdit(actorID, comment.UserID); err != nil {
		return nil, err
	}
	if err := s.store.Whispers.UpdateCommentText(ctx, commentID, text); err != nil {
		return nil, storeErr(err, "update comment")
	}
	return s.view(ctx, whisperID)
}

// DeleteComment 删除评论，评论作者或 Whisper 作者均可
func (s *WhisperService) DeleteComment(ctx context.Context, actorID, whisperID, commentID uint) (*WhisperView, error) {
	whisper, err := s.getWhisper(ctx, whisperID)
	if err != nil {
		return nil, err
	}
	comment, err := s.getComment(ctx, whisperID, commentID)
	if err != nil {
		return nil, err
	}
	if err := CanDelete(actorID, comment.UserID, whisper.UserID); err != nil {
		return nil, err
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Whispers.DeleteComment(ctx, commentID)
	})
	if err != nil {
		return nil, storeErr(err, "delete comment")
	}
	return s.view(ctx, whisperID)
}

// AddReply 回复评论，权限与评论相同（以 Whisper 作者为准）
func (s *WhisperService) AddReply(ctx context.Context, actorID, whisperID, commentID uint, text string) (*WhisperView, error) {
	text, err := checkText(text, s.limits.MaxCommentLength, "reply")
	if err != nil {
		return nil, err
	}
	whisper, err := s.getWhisper(ctx, whisperID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getComment(ctx, whisperID, commentID); err != nil {
		return nil, err
	}
	if err := s.checkComment(ctx, actorID, whisper.UserID); err != nil {
		return nil, err
	}

	reply := &model.Reply{CommentID: commentID, UserID: actorID, Text: text}
	if err := s.store.Whispers.CreateReply(ctx, reply); err != nil {
		return nil, storeErr(err, "create reply")
	}
	s.notifyOwner(ctx, actorID, whisper, commentID)
	return s.view(ctx, whisperID)
}

func (s *WhisperService) EditReply(ctx context.Context, actorID, whisperID, commentID, replyID uint, text string) (*WhisperView, error) {
	text, err := checkText(text, s.limits.MaxCommentLength, "reply")
	if err != nil {
		return nil, err
	}
	if _, err := s.getComment(ctx, whisperID, commentID); err != nil {
		return nil, err
	}
	reply, err := s.getReply(ctx, commentID, replyID)
	if err != nil {
		return nil, err
	}
	if err := CanEdit(actorID, reply.UserID); err != nil {
		return nil, err
	}
	if err := s.store.Whispers.UpdateReplyText(ctx, replyID, text); err != nil {
		return nil, storeErr(err, "update reply")
	}
	return s.view(ctx, whisperID)
}

func (s *WhisperService) DeleteReply(ctx context.Context, actorID, whisperID, commentID, replyID uint) (*WhisperView, error) {
	whisper, err := s.getWhisper(ctx, whisperID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getComment(ctx, whisperID, commentID); err != nil {
		return nil, err
	}
	reply, err := s.getReply(ctx, commentID, replyID)
	if err != nil {
		return nil, err
	}
	if err := CanDelete(actorID, reply.UserID, whisper.UserID); err != nil {
		return nil, err
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Whispers.DeleteReply(ctx, replyID)
	})
	if err != nil {
		return nil, storeErr(err, "delete reply")
	}
	return s.view(ctx, whisperID)
}

// React 点赞或点踩：重复同一反应取消，相反反应替换，不要求好友关系
func (s *WhisperService) React(ctx context.Context, actorID uint, target ReactionTarget, kind string) (*WhisperView, error) {
	if kind != model.ReactionLike && kind != model.ReactionDislike {
		return nil, validation("unknown reaction %q", kind)
	}
	if _, err := s.getWhisper(ctx, target.WhisperID); err != nil {
		return nil, err
	}
	if target.CommentID != 0 {
		if _, err := s.getComment(ctx, target.WhisperID, target.CommentID); err != nil {
			return nil, err
		}
	}
	if target.ReplyID != 0 {
		if _, err := s.getReply(ctx, target.CommentID, target.ReplyID); err != nil {
			return nil, err
		}
	}

	targetType, targetID := target.Resolve()
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.Reactions.Get(ctx, targetType, targetID, actorID)
		switch {
		case isNotFound(err):
			return tx.Reactions.Create(ctx, &model.Reaction{
				TargetType: targetType,
				TargetID:   targetID,
				UserID:     actorID,
				Kind:       kind,
			})
		case err != nil:
			return err
		case existing.Kind == kind:
			return tx.Reactions.Delete(ctx, targetType, targetID, actorID)
		default:
			return tx.Reactions.UpdateKind(ctx, targetType, targetID, actorID, kind)
		}
	})
	if err != nil {
		return nil, storeErr(err, "toggle reaction")
	}
	return s.view(ctx, target.WhisperID)
}

func (s *WhisperService) checkComment(ctx context.Context, actorID, ownerID uint) error {
	actor, err := loadRelations(ctx, s.store, actorID)
	if err != nil {
		return err
	}
	owner, err := loadRelations(ctx, s.store, ownerID)
	if err != nil {
		return err
	}
	return CanComment(actor, owner)
}

func (s *WhisperService) notifyOwner(ctx context.Context, actorID uint, whisper *model.Whisper, commentID uint) {
	if actorID == whisper.UserID {
		return
	}
	publish(ctx, s.publisher, events.TopicWhisperCommented, events.Event{
		RecipientID: whisper.UserID,
		ActorID:     actorID,
		Data: map[string]interface{}{
			"whisperId": whisper.ID,
			"commentId": commentID,
		},
	})
}

func (s *WhisperService) view(ctx context.Context, whisperID uint) (*WhisperView, error) {
	whisper, err := s.getWhisper(ctx, whisperID)
	if err != nil {
		return nil, err
	}
	return s.composer.composeOne(ctx, whisper)
}

func (s *WhisperService) getWhisper(ctx context.Context, id uint) (*model.Whisper, error) {
	w, err := s.store.Whispers.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("whisper not found")
		}
		return nil, storeErr(err, "load whisper")
	}
	return w, nil
}

func (s *WhisperService) getComment(ctx context.Context, whisperID, commentID uint) (*model.Comment, error) {
	c, err := s.store.Whispers.GetComment(ctx, whisperID, commentID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("comment not found")
		}
		return nil, storeErr(err, "load comment")
	}
	return c, nil
}

func (s *WhisperService) getReply(ctx context.Context, commentID, replyID uint) (*model.Reply, error) {
	r, err := s.store.Whispers.GetReply(ctx, commentID, replyID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("reply not found")
		}
		return nil, storeErr(err, "load reply")
	}
	return r, nil
}
