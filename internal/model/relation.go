package model

import "time"

// Friendship 好友关系，每对好友存两行（双向各一行），在同一事务中写入

type Friendship struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;comment:用户ID"`
	FriendID  uint      `gorm:"primaryKey;autoIncrement:false;index;comment:好友ID"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
}

func (Friendship) TableName() string { return "friendship" }

// FriendRequest 待处理的好友请求，同一有序对最多一条
// receiver_id 用于查询收到的请求，sender_id 索引用于查询发出的请求

type FriendRequest struct {
	SenderID   uint      `gorm:"primaryKey;autoIncrement:false;index;comment:发送者ID"`
	ReceiverID uint      `gorm:"primaryKey;autoIncrement:false;index;comment:接收者ID"`
	CreatedAt  time.Time `gorm:"comment:创建时间"`
}

func (FriendRequest) TableName() string { return "friend_request" }

// Block 拉黑关系，有方向

type Block struct {
	BlockerID uint      `gorm:"primaryKey;autoIncrement:false;comment:拉黑者ID"`
	BlockedID uint      `gorm:"primaryKey;autoIncrement:false;index;comment:被拉黑者ID"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
}

func (Block) TableName() string { return "block" }
