package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix 签名头前缀
const Prefix = "sha256="

// 可接受的签名请求头，按优先级
var Headers = []string{"X-Hub-Signature-256", "X-Signature-256"}

// Sign 计算 payload 的签名头值 sha256=<hex>
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify 校验签名头，payload 必须是未经解析的原始请求体
func Verify(payload []byte, header, secret string) bool {
	if secret == "" || !strings.HasPrefix(header, Prefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, Prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
