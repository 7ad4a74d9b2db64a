package repository

import (
	"context"

	"whisp/internal/model"

	"gorm.io/gorm"
)

// WhisperRepository Whisper、评论、回复仓储
type WhisperRepository struct {
	db *gorm.DB
}

// NewWhisperRepository 创建WhisperRepository实例
func NewWhisperRepository(db *gorm.DB) *WhisperRepository {
	return &WhisperRepository{db: db}
}

func (r *WhisperRepository) Create(ctx context.Context, whisper *model.Whisper) error {
	return r.db.WithContext(ctx).Create(whisper).Error
}

// GetByID 获取 Whisper 及其评论、回复
func (r *WhisperRepository) GetByID(ctx context.Context, id uint) (*model.Whisper, error) {
	var w model.Whisper
	err := r.db.WithContext(ctx).
		Preload("Comments").
		Preload("Comments.Replies").
		First(&w, id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// List 按创建时间倒序分页获取 Whisper；authorIDs 为 nil 时不过滤作者，limit < 0 时不分页
func (r *WhisperRepository) List(ctx context.Context, authorIDs []uint, offset, limit int) ([]*model.Whisper, int64, error) {
	if authorIDs != nil && len(authorIDs) == 0 {
		return []*model.Whisper{}, 0, nil
	}
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&model.Whisper{})
		if authorIDs != nil {
			query = query.Where("user_id IN ?", authorIDs)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var whispers []*model.Whisper
	err := scoped().
		Preload("Comments").
		Preload("Comments.Replies").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&whispers).Error
	return whispers, total, err
}

// Delete 删除 Whisper 及其评论、回复、全部点赞，需在事务中调用
func (r *WhisperRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	commentIDs := db.Model(&model.Comment{}).Select("id").Where("whisper_id = ?", id)
	if err := r.deleteComments(ctx, commentIDs); err != nil {
		return err
	}
	if err := deleteReactions(db, model.TargetWhisper, []uint{id}); err != nil {
		return err
	}
	return db.Delete(&model.Whisper{}, id).Error
}

// GetComment 获取属于指定 Whisper 的评论
func (r *WhisperRepository) GetComment(ctx context.Context, whisperID, commentID uint) (*model.Comment, error) {
	var c model.Comment
	err := r.db.WithContext(ctx).
		Where("id = ? AND whisper_id = ?", commentID, whisperID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *WhisperRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *WhisperRepository) UpdateCommentText(ctx context.Context, commentID uint, text string) error {
	return r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", commentID).Update("text", text).Error
}

// DeleteComment 删除评论及其回复和点赞，需在事务中调用
func (r *WhisperRepository) DeleteComment(ctx context.Context, commentID uint) error {
	return r.deleteComments(ctx, []uint{commentID})
}

// GetReply 获取属于指定评论的回复
func (r *WhisperRepository) GetReply(ctx context.Context, commentID, replyID uint) (*model.Reply, error) {
	var reply model.Reply
	err := r.db.WithContext(ctx).
		Where("id = ? AND comment_id = ?", replyID, commentID).
		First(&reply).Error
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *WhisperRepository) CreateReply(ctx context.Context, reply *model.Reply) error {
	return r.db.WithContext(ctx).Create(reply).Error
}

func (r *WhisperRepository) UpdateReplyText(ctx context.Context, replyID uint, text string) error {
	return r.db.WithContext(ctx).Model(&model.Reply{}).Where("id = ?", replyID).Update("text", text).Error
}

// DeleteReply 删除回复及其点赞
func (r *WhisperRepository) DeleteReply(ctx context.Context, replyID uint) error {
	db := r.db.WithContext(ctx)
	if err := deleteReactions(db, model.TargetReply, []uint{replyID}); err != nil {
		return err
	}
	return db.Delete(&model.Reply{}, replyID).Error
}

// DeleteByUser 删除用户的全部内容：其 Whisper（含下属评论、回复、点赞），
// 以及其在他人 Whisper 下的评论和回复，需在事务中调用
func (r *WhisperRepository) DeleteByUser(ctx context.Context, userID uint) error {
	db := r.db.WithContext(ctx)

	whisperIDs := db.Model(&model.Whisper{}).Select("id").Where("user_id = ?", userID)
	commentIDs := db.Model(&model.Comment{}).Select("id").
		Where("user_id = ? OR whisper_id IN (?)", userID, whisperIDs)
	if err := r.deleteComments(ctx, commentIDs); err != nil {
		return err
	}

	// 他人评论下该用户的回复
	replyIDs := db.Model(&model.Reply{}).Select("id").Where("user_id = ?", userID)
	if err := deleteReactions(db, model.TargetReply, replyIDs); err != nil {
		return err
	}
	if err := db.Where("user_id = ?", userID).Delete(&model.Reply{}).Error; err != nil {
		return err
	}

	if err := deleteReactions(db, model.TargetWhisper, whisperIDs); err != nil {
		return err
	}
	return db.Where("user_id = ?", userID).Delete(&model.Whisper{}).Error
}

// deleteComments 删除评论集合及其回复和点赞；commentIDs 为ID切片或子查询
func (r *WhisperRepository) deleteComments(ctx context.Context, commentIDs interface{}) error {
	db := r.db.WithContext(ctx)

	// 子查询在删除过程中会被改变，先取出ID
	var ids []uint
	switch v := commentIDs.(type) {
	case []uint:
		ids = v
	case *gorm.DB:
		if err := v.Pluck("id", &ids).Error; err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var replyIDs []uint
	if err := db.Model(&model.Reply{}).Where("comment_id IN ?", ids).Pluck("id", &replyIDs).Error; err != nil {
		return err
	}
	if err := deleteReactions(db, model.TargetReply, replyIDs); err != nil {
		return err
	}
	if err := db.Where("comment_id IN ?", ids).Delete(&model.Reply{}).Error; err != nil {
		return err
	}
	if err := deleteReactions(db, model.TargetComment, ids); err != nil {
		return err
	}
	return db.Where("id IN ?", ids).Delete(&model.Comment{}).Error
}
