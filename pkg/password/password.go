// Package password bcrypt 密码哈希
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes bcrypt 只使用前 72 字节，更长的密码直接拒绝
const MaxBytes = 72

// ErrTooLong 密码超过 MaxBytes
var ErrTooLong = errors.New("password exceeds 72 bytes")

// Cost 哈希强度，测试中可调低
var Cost = bcrypt.DefaultCost

// Hash 生成密码哈希
func Hash(plain string) (string, error) {
	if len(plain) > MaxBytes {
		return "", ErrTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify 校验密码；哈希为空或格式错误时返回 false
func Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
