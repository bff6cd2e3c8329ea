package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SignHmac 构建 L2 请求的 HMAC-SHA256 签名。
// 消息为 timestamp + method + path (+ body)；secret 为 base64url 编码，
// 返回值同样转回 base64url（保留 = 填充）。
func SignHmac(secret string, timestamp int64, method, requestPath string, body *string) (string, error) {
	message := strconv.FormatInt(timestamp, 10) + method + requestPath
	if body != nil {
		message += *body
	}

	key, err := base64.StdEncoding.DecodeString(base64urlToStd(secret))
	if err != nil {
		return "", errors.Wrap(err, "解码 secret 失败")
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))

	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	sig = strings.ReplaceAll(sig, "+", "-")
	sig = strings.ReplaceAll(sig, "/", "_")
	return sig, nil
}

// base64urlToStd 把 base64url 还原成标准 base64，并剔除杂质字符
func base64urlToStd(s string) string {
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '+' || r == '/' || r == '=':
			return r
		}
		return -1
	}, s)
}
