package execution

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInsufficientBalance 余额/授权不足。瞬态错误：入金后无需重启即可恢复，
// 上层应退避重试而不是把档位标记为已触发。
var ErrInsufficientBalance = errors.New("余额或授权不足")

// ErrBelowMinSize 计算出的下单量低于交易所最小值。永久错误（对当前参数而言）。
var ErrBelowMinSize = errors.New("下单量低于交易所最小值")

// IsInsufficientBalance 判断错误是否为余额/授权类。
// 交易所以文本返回这类错误，按消息匹配（与哨兵错误二者取一即可命中）。
func IsInsufficientBalance(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInsufficientBalance) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not enough balance") ||
		strings.Contains(msg, "insufficient balance") ||
		strings.Contains(msg, "balance / allowance")
}
