package repository

import (
	"context"

	"whisp/internal/model"

	"gorm.io/gorm"
)

// ReactionRepository 点赞/点踩仓储
type ReactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository 创建ReactionRepository实例
func NewReactionRepository(db *gorm.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Get 获取用户对目标的反应，不存在时返回 gorm.ErrRecordNotFound
func (r *ReactionRepository) Get(ctx context.Context, targetType string, targetID, userID uint) (*model.Reaction, error) {
	var reaction model.Reaction
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", targetType, targetID, userID).
		First(&reaction).Error
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (r *ReactionRepository) Create(ctx context.Context, reaction *model.Reaction) error {
	return r.db.WithContext(ctx).Create(reaction).Error
}

func (r *ReactionRepository) UpdateKind(ctx context.Context, targetType string, targetID, userID uint, kind string) error {
	return r.db.WithContext(ctx).Model(&model.Reaction{}).
		Where("target_type = ? AND target_id = ? AND user_id = ?", targetType, targetID, userID).
		Update("kind", kind).Error
}

func (r *ReactionRepository) Delete(ctx context.Context, targetType string, targetID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", targetType, targetID, userID).
		Delete(&model.Reaction{}).Error
}

// ListForTargets 批量获取一组目标的全部反应，按创建时间排序
func (r *ReactionRepository) ListForTargets(ctx context.Context, targetType string, targetIDs []uint) ([]*model.Reaction, error) {
	var reactions []*model.Reaction
	if len(targetIDs) == 0 {
		return reactions, nil
	}
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Order("created_at ASC").
		Find(&reactions).Error
	return reactions, err
}

// DeleteByUser 删除用户做出的全部反应
func (r *ReactionRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Reaction{}).Error
}

// deleteReactions 删除一组目标上的反应；ids 为ID切片或子查询
func deleteReactions(db *gorm.DB, targetType string, ids interface{}) error {
	if slice, ok := ids.([]uint); ok && len(slice) == 0 {
		return nil
	}
	return db.Where("target_type = ? AND target_id IN (?)", targetType, ids).Delete(&model.Reaction{}).Error
}
