package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes bcrypt 只使用密码的前72个字节
const MaxBytes = 72

// ErrTooLong 密码超过 bcrypt 可处理的长度
var ErrTooLong = errors.New("password exceeds 72 bytes")

// CheckLength 按字节校验密码长度，超长的密码不会被静默截断
func CheckLength(plain string) error {
	if len(plain) > MaxBytes {
		return ErrTooLong
	}
	return nil
}

// Hash 生成密码哈希
func Hash(plain string) (string, error) {
	if err := CheckLength(plain); err != nil {
		return "", err
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify 校验密码，超长输入直接视为不匹配
func Verify(plain, hash string) bool {
	if CheckLength(plain) != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
