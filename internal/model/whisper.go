package model

import "time"

// Whisper 短帖

type Whisper struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"not null;index;comment:作者ID"`
	Content   string     `gorm:"type:varchar(1024);not null;comment:内容"`
	Comments  []*Comment `gorm:"foreignKey:WhisperID"`
	CreatedAt time.Time  `gorm:"index;comment:创建时间"`
}

func (Whisper) TableName() string { return "whisper" }

// Comment 评论，仅属于一条 Whisper

type Comment struct {
	ID        uint      `gorm:"primaryKey"`
	WhisperID uint      `gorm:"not null;index;comment:所属Whisper"`
	UserID    uint      `gorm:"not null;index;comment:作者ID"`
	Text      string    `gorm:"type:text;not null;comment:内容"`
	Replies   []*Reply  `gorm:"foreignKey:CommentID"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
	UpdatedAt time.Time `gorm:"comment:更新时间"`
}

func (Comment) TableName() string { return "comment" }

// Reply 回复，仅属于一条 Comment

type Reply struct {
	ID        uint      `gorm:"primaryKey"`
	CommentID uint      `gorm:"not null;index;comment:所属评论"`
	UserID    uint      `gorm:"not null;index;comment:作者ID"`
	Text      string    `gorm:"type:text;not null;comment:内容"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
	UpdatedAt time.Time `gorm:"comment:更新时间"`
}

func (Reply) TableName() string { return "reply" }

// 点赞/点踩目标类型
const (
	TargetWhisper = "whisper"
	TargetComment = "comment"
	TargetReply   = "reply"
)

// 反应类型
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Reaction 点赞或点踩，主键保证同一用户对同一目标只有一种反应

type Reaction struct {
	TargetType string    `gorm:"type:varchar(16);primaryKey;comment:目标类型"`
	TargetID   uint      `gorm:"primaryKey;autoIncrement:false;comment:目标ID"`
	UserID     uint      `gorm:"primaryKey;autoIncrement:false;index;comment:用户ID"`
	Kind       string    `gorm:"type:varchar(16);not null;comment:like/dislike"`
	CreatedAt  time.Time `gorm:"comment:创建时间"`
}

func (Reaction) TableName() string { return "reaction" }
