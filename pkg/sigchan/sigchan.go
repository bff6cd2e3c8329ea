package sigchan

// Chan 非阻塞信号 channel：只通知事件发生，不携带数据。
// 缓冲打满时 Emit 直接丢弃，天然对重复信号去重。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel
func New(bufferSize int) *Chan {
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发送信号（非阻塞）
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回内部 channel（select 用）
func (c *Chan) C() <-chan struct{} {
	return c.c
}
