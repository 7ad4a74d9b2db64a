package model

import (
	"time"
)

// User 用户模型
// 索引与唯一约束：用户名唯一、邮箱唯一
// 说明：密码仅存储哈希（PasswordHash），不存储明文
// Version 为乐观锁版本号，每次关系变更时加一

type User struct {
	ID                       uint       `gorm:"primaryKey"`
	Username                 string     `gorm:"type:varchar(64);not null;uniqueIndex;comment:用户名"`
	Email                    string     `gorm:"type:varchar(128);not null;uniqueIndex;comment:邮箱"`
	PasswordHash             string     `gorm:"type:varchar(255);not null;comment:密码哈希"`
	Bio                      string     `gorm:"type:varchar(255);not null;default:'';comment:个人简介"`
	Avatar                   string     `gorm:"type:varchar(255);not null;default:'';comment:头像URL"`
	IsEmailVerified          bool       `gorm:"not null;default:false;comment:邮箱是否已验证"`
	EmailVerificationToken   string     `gorm:"type:varchar(128);index;comment:邮箱验证令牌"`
	EmailVerificationExpires *time.Time `gorm:"comment:验证令牌过期时间"`
	PasswordChangedAt        *time.Time `gorm:"comment:最近修改密码时间"`
	Version                  uint       `gorm:"not null;default:0;comment:乐观锁版本号"`
	CreatedAt                time.Time  `gorm:"comment:创建时间"`
	UpdatedAt                time.Time  `gorm:"comment:更新时间"`
}

// TableName 指定表名（因全局配置使用单数表名，这里与结构体名一致为 user）
func (User) TableName() string { return "user" }

// iat 以浮点秒编码，解码后可能比签发时间少1毫秒
const issuedAtSkew = time.Millisecond

// TokenIssuedBeforePasswordChange 令牌签发时间早于最近一次修改密码时返回 true，按毫秒比较
func (u *User) TokenIssuedBeforePasswordChange(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Add(issuedAtSkew).Before(u.PasswordChangedAt.Truncate(time.Millisecond))
}
