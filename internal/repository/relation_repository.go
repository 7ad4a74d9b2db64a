package repository

import (
	"context"

	"whisp/internal/model"

	"gorm.io/gorm"
)

// RelationRepository 好友、好友请求、拉黑关系仓储
type RelationRepository struct {
	db *gorm.DB
}

// NewRelationRepository 创建RelationRepository实例
func NewRelationRepository(db *gorm.DB) *RelationRepository {
	return &RelationRepository{db: db}
}

// FriendIDs 获取用户的全部好友ID
func (r *RelationRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ?", userID).
		Order("friend_id ASC").
		Pluck("friend_id", &ids).Error
	return ids, err
}

// AreFriends 判断两人是否为好友
func (r *RelationRepository) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&count).Error
	return count > 0, err
}

// AddFriendship 写入双向好友关系，需在事务中调用
func (r *RelationRepository) AddFriendship(ctx context.Context, a, b uint) error {
	rows := []model.Friendship{
		{UserID: a, FriendID: b},
		{UserID: b, FriendID: a},
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// RemoveFriendship 删除双向好友关系
func (r *RelationRepository) RemoveFriendship(ctx context.Context, a, b uint) error {
	return r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Delete(&model.Friendship{}).Error
}

// HasRequest 判断 sender 是否向 receiver 发送过待处理请求
func (r *RelationRepository) HasRequest(ctx context.Context, senderID, receiverID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Count(&count).Error
	return count > 0, err
}

func (r *RelationRepository) CreateRequest(ctx context.Context, senderID, receiverID uint) error {
	return r.db.WithContext(ctx).Create(&model.FriendRequest{SenderID: senderID, ReceiverID: receiverID}).Error
}

// DeleteRequest 删除单向请求，返回删除行数
func (r *RelationRepository) DeleteRequest(ctx context.Context, senderID, receiverID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Delete(&model.FriendRequest{})
	return result.RowsAffected, result.Error
}

// DeleteRequestsBetween 删除两人之间两个方向的请求
func (r *RelationRepository) DeleteRequestsBetween(ctx context.Context, a, b uint) error {
	return r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Delete(&model.FriendRequest{}).Error
}

// IncomingIDs 收到的请求的发送者ID，最新的在前
func (r *RelationRepository) IncomingIDs(ctx context.Context, receiverID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Pluck("sender_id", &ids).Error
	return ids, err
}

// OutgoingIDs 发出的请求的接收者ID，走 sender_id 索引
func (r *RelationRepository) OutgoingIDs(ctx context.Context, senderID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("sender_id = ?", senderID).
		Order("created_at DESC").
		Pluck("receiver_id", &ids).Error
	return ids, err
}

// IsBlocked 判断 blocker 是否拉黑了 blocked
func (r *RelationRepository) IsBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	return count > 0, err
}

func (r *RelationRepository) CreateBlock(ctx context.Context, blockerID, blockedID uint) error {
	return r.db.WithContext(ctx).Create(&model.Block{BlockerID: blockerID, BlockedID: blockedID}).Error
}

// DeleteBlock 返回删除行数
func (r *RelationRepository) DeleteBlock(ctx context.Context, blockerID, blockedID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&model.Block{})
	return result.RowsAffected, result.Error
}

// BlockedIDs 用户拉黑的全部用户ID
func (r *RelationRepository) BlockedIDs(ctx context.Context, blockerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Block{}).
		Where("blocker_id = ?", blockerID).
		Order("blocked_id ASC").
		Pluck("blocked_id", &ids).Error
	return ids, err
}

// DeleteAllFor 删除与用户相关的全部关系（好友、请求、拉黑，两个方向）
func (r *RelationRepository) DeleteAllFor(ctx context.Context, userID uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("user_id = ? OR friend_id = ?", userID, userID).Delete(&model.Friendship{}).Error; err != nil {
		return err
	}
	if err := db.Where("sender_id = ? OR receiver_id = ?", userID, userID).Delete(&model.FriendRequest{}).Error; err != nil {
		return err
	}
	return db.Where("blocker_id = ? OR blocked_id = ?", userID, userID).Delete(&model.Block{}).Error
}
