package merton

import "sort"

// ReturnWindow 固定容量的对数收益率环形缓冲区，满时丢弃最旧样本（FIFO）。
// 与每个收益率一起记录对应的 tick 间隔（微秒），用于估计 Δt。
// 非并发安全，由 Calibrator 持锁访问。
type ReturnWindow struct {
	returns []float64
	dtUs    []int64
	head    int // 下一个写入位置
	size    int
}

// NewReturnWindow 创建容量为 capacity 的窗口。
func NewReturnWindow(capacity int) *ReturnWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &ReturnWindow{
		returns: make([]float64, capacity),
		dtUs:    make([]int64, capacity),
	}
}

// Push 追加一个收益率；返回是否发生了淘汰。
func (w *ReturnWindow) Push(r float64, dtUs int64) (evicted bool) {
	w.returns[w.head] = r
	w.dtUs[w.head] = dtUs
	w.head = (w.head + 1) % len(w.returns)
	if w.size == len(w.returns) {
		return true
	}
	w.size++
	return false
}

// Len 当前样本数。
func (w *ReturnWindow) Len() int { return w.size }

// Cap 窗口容量。
func (w *ReturnWindow) Cap() int { return len(w.returns) }

// start 最旧样本的下标。
func (w *ReturnWindow) start() int {
	if w.size < len(w.returns) {
		return 0
	}
	return w.head
}

// Returns 按插入顺序（最旧在前）返回收益率副本。
func (w *ReturnWindow) Returns() []float64 {
	out := make([]float64, w.size)
	s := w.start()
	for i := 0; i < w.size; i++ {
		out[i] = w.returns[(s+i)%len(w.returns)]
	}
	return out
}

// Intervals 按插入顺序返回 tick 间隔副本（微秒）。
func (w *ReturnWindow) Intervals() []int64 {
	out := make([]int64, w.size)
	s := w.start()
	for i := 0; i < w.size; i++ {
		out[i] = w.dtUs[(s+i)%len(w.dtUs)]
	}
	return out
}

// MedianDtMicros 窗口内 tick 间隔的中位数（偶数个时取上中位数）；空窗口返回 0。
func (w *ReturnWindow) MedianDtMicros() int64 {
	if w.size == 0 {
		return 0
	}
	s := w.Intervals()
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s[len(s)/2]
}

// WindowSnapshot 某一时刻窗口内容的副本（最旧在前）。
type WindowSnapshot struct {
	Returns     []float64
	IntervalsUs []int64
	MedianDtUs  int64
}

// Snapshot 一次性复制收益率、间隔与间隔中位数，供锁外拟合使用。
func (w *ReturnWindow) Snapshot() WindowSnapshot {
	return WindowSnapshot{
		Returns:     w.Returns(),
		IntervalsUs: w.Intervals(),
		MedianDtUs:  w.MedianDtMicros(),
	}
}

// DistinctReturns 窗口内不同收益率的个数，数到 limit 即停止（limit<=0 表示不设上限）。
func (w *ReturnWindow) DistinctReturns(limit int) int {
	return countDistinct(w.Returns(), limit)
}

func countDistinct(returns []float64, limit int) int {
	seen := make(map[float64]struct{})
	for _, r := range returns {
		seen[r] = struct{}{}
		if limit > 0 && len(seen) >= limit {
			break
		}
	}
	return len(seen)
}
