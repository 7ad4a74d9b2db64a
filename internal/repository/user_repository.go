package repository

import (
	"context"
	"errors"
	"strings"

	"whisp/internal/model"

	"gorm.io/gorm"
)

// ErrStaleVersion 乐观锁版本号已过期
var ErrStaleVersion = errors.New("stale user version")

// UserRepository 用户数据仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建UserRepository实例
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 不存在时返回 gorm.ErrRecordNotFound
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("username = ? OR email = ?", identifier, identifier).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email_verification_token = ?", token).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ExistsByUsername 检查用户名是否被除 excludeID 以外的用户占用
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ? AND id <> ?", username, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// ListByIDs 批量获取用户，按用户名排序
func (r *UserRepository) ListByIDs(ctx context.Context, ids []uint) ([]*model.User, error) {
	var users []*model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("username ASC").Find(&users).Error
	return users, err
}

// Search 按用户名模糊搜索（不区分大小写）
func (r *UserRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]*model.User, error) {
	var users []*model.User
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '!' AND id <> ?", pattern, excludeID).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// Updates 更新指定字段
func (r *UserRepository) Updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// BumpVersion 基于版本号的比较并交换，版本已变化时返回 ErrStaleVersion
func (r *UserRepository) BumpVersion(ctx context.Context, id, version uint) error {
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND version = ?", id, version).
		UpdateColumn("version", gorm.Expr("version + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.User{}, id).Error
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
