package syncgroup

import "sync"

// SyncGroup sync.WaitGroup 的薄封装：Add 收集函数，Run 统一启动，
// 避免手写 Add/Done 配对出错。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	fns     []func()
	running int
}

func New() *SyncGroup {
	return &SyncGroup{}
}

// Add 登记一个 goroutine 函数（须在 Run 之前调用）
func (g *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running > 0 {
		return // 上一批还在运行，先 WaitAndClear
	}
	g.fns = append(g.fns, fn)
}

// Run 启动所有已登记的函数
func (g *SyncGroup) Run() {
	g.mu.Lock()
	if g.running > 0 {
		g.mu.Unlock()
		return
	}
	fns := g.fns
	g.fns = nil
	g.running = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(do func()) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
			}()
			do()
		}(fn)
	}
}

// Wait 等待所有 goroutine 完成
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// WaitAndClear 等待完成并复位，之后可再次 Add/Run
func (g *SyncGroup) WaitAndClear() {
	g.wg.Wait()
	g.mu.Lock()
	g.fns = nil
	g.running = 0
	g.mu.Unlock()
}
