package raft

import (
	"sync"
	"time"
)

// SmoothingParams 描述一个自适应rpc超时：目标值为 maxLm+Padding，
// 每次最多变化 MaxChange 比例，并限制在 [Min, Max] 之间，避免网络抖动时来回振荡。
type SmoothingParams struct {
	Initial   time.Duration
	Padding   time.Duration
	Fallback  time.Duration // 还没有 maxLm 时的目标值
	MaxChange float64
	Min       time.Duration
	Max       time.Duration
}

func DefaultVoteTimeout() SmoothingParams {
	return SmoothingParams{
		Initial:   75 * time.Millisecond,
		Padding:   25 * time.Millisecond,
		Fallback:  75 * time.Millisecond,
		MaxChange: 0.25,
		Min:       25 * time.Millisecond,
		Max:       500 * time.Millisecond,
	}
}

func DefaultReplicationTimeout() SmoothingParams {
	return SmoothingParams{
		Initial:   100 * time.Millisecond,
		Padding:   50 * time.Millisecond,
		Fallback:  100 * time.Millisecond,
		MaxChange: 0.25,
		Min:       50 * time.Millisecond,
		Max:       2500 * time.Millisecond,
	}
}

type smoothTimeout struct {
	params SmoothingParams

	mu   sync.Mutex
	prev time.Duration
}

func newSmoothTimeout(params SmoothingParams) *smoothTimeout {
	return &smoothTimeout{params: params, prev: params.Initial}
}

func (t *smoothTimeout) target(maxLm time.Duration, ok bool) time.Duration {
	if ok && maxLm > 0 {
		return maxLm + t.params.Padding
	}
	return t.params.Fallback
}

// next 根据最新的 maxLm 计算本轮使用的超时
func (t *smoothTimeout) next(maxLm time.Duration, ok bool) time.Duration {
	target := t.target(maxLm, ok)

	t.mu.Lock()
	defer t.mu.Unlock()
	diff := target - t.prev
	maxChange := time.Duration(float64(t.prev) * t.params.MaxChange)
	switch {
	case diff > maxChange:
		diff = maxChange
	case diff < -maxChange:
		diff = -maxChange
	}
	value := t.prev + diff
	if value < t.params.Min {
		value = t.params.Min
	}
	if value > t.params.Max {
		value = t.params.Max
	}
	t.prev = value
	return value
}

func (t *smoothTimeout) current() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prev
}
