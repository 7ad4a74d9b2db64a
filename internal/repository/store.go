package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store 聚合所有仓储，事务内通过 tx 绑定的 Store 访问
type Store struct {
	db        *gorm.DB
	Users     *UserRepository
	Relations *RelationRepository
	Whispers  *WhisperRepository
	Reactions *ReactionRepository
	Messages  *MessageRepository
}

// NewStore 创建Store实例
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Users:     NewUserRepository(db),
		Relations: NewRelationRepository(db),
		Whispers:  NewWhisperRepository(db),
		Reactions: NewReactionRepository(db),
		Messages:  NewMessageRepository(db),
	}
}

// Transaction 在同一事务中执行 fn，fn 返回错误时整体回滚
// fn 内只能使用传入的 tx，不能再访问外层 Store
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
