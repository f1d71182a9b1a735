package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SecretBytes 随机密钥长度，hex 后为 64 个字符
const SecretBytes = 32

// Generate 生成随机令牌（hex）
func Generate() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Digest 计算令牌摘要，数据库只保存摘要
func Digest(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Mask 遮蔽令牌，仅保留首8位与末4位
func Mask(plain string) string {
	if len(plain) <= 12 {
		return strings.Repeat("*", len(plain))
	}
	return plain[:8] + strings.Repeat("*", len(plain)-12) + plain[len(plain)-4:]
}
