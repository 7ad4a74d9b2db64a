package model

import "time"

// Message 好友私信，创建后不可修改

type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index;comment:发送者ID" json:"senderId"`
	ReceiverID uint      `gorm:"not null;index;comment:接收者ID" json:"receiverId"`
	Content    string    `gorm:"type:text;not null;comment:消息内容" json:"content"`
	CreatedAt  time.Time `gorm:"index;comment:创建时间" json:"createdAt"`
}

func (Message) TableName() string { return "message" }

// All 返回需要自动迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Friendship{},
		&FriendRequest{},
		&Block{},
		&Whisper{},
		&Comment{},
		&Reply{},
		&Reaction{},
		&Message{},
	}
}
