package raft

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ElectionTimer 是选举超时计时器。每次超时都会把本地的任期游标加一并从 C() 发出，
// 冻结时(leader期间)超时被忽略。term 是本地逻辑计数，不是日志任期。
type ElectionTimer struct {
	mu       sync.Mutex
	base     time.Duration // 初始超时，随机化到 [base, 2*base)
	adaptive time.Duration // 延迟探测给出的超时，>0 时直接使用
	term     int64
	frozen   bool

	resetCh chan struct{}
	out     chan int64
}

func NewElectionTimer(base time.Duration) *ElectionTimer {
	return &ElectionTimer{
		base:    base,
		frozen:  true,
		resetCh: make(chan struct{}, 1),
		out:     make(chan int64),
	}
}

// C 每次超时发出新的任期，只能有一个消费者
func (t *ElectionTimer) C() <-chan int64 {
	return t.out
}

func (t *ElectionTimer) Term() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.term
}

func (t *ElectionTimer) Frozen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frozen
}

// Start 解冻并重新开始计时，重复调用没有副作用
func (t *ElectionTimer) Start() {
	t.mu.Lock()
	wasFrozen := t.frozen
	t.frozen = false
	t.mu.Unlock()
	if wasFrozen {
		t.Reset()
	}
}

func (t *ElectionTimer) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Reset 重新开始倒计时，不改变超时时间
func (t *ElectionTimer) Reset() {
	select {
	case t.resetCh <- struct{}{}:
	default:
	}
}

// Update 看到更大的任期时快进本地游标
func (t *ElectionTimer) Update(term int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if term > t.term {
		t.term = term
	}
}

func (t *ElectionTimer) UpdateIntervalBasedOnDelays(interval time.Duration) {
	if interval <= 0 {
		return
	}
	t.mu.Lock()
	prev := t.adaptive
	t.adaptive = interval
	t.mu.Unlock()
	if prev != interval {
		log.Infof("选举超时更新: %v -> %v", prev, interval)
	}
}

func (t *ElectionTimer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.adaptive > 0 {
		return t.adaptive
	}
	return t.base
}

func (t *ElectionTimer) nextTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.adaptive > 0 {
		return t.adaptive
	}
	return t.base + rand.N(t.base)
}

// Run 运行计时器直到 ctx 结束
func (t *ElectionTimer) Run(ctx context.Context) {
	timer := time.NewTimer(t.nextTimeout())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.resetCh:
			timer.Reset(t.nextTimeout())
		case <-timer.C:
			t.mu.Lock()
			if t.frozen {
				t.mu.Unlock()
				continue
			}
			t.term++
			term := t.term
			t.mu.Unlock()

			select {
			case t.out <- term:
			case <-ctx.Done():
				return
			}
			timer.Reset(t.nextTimeout())
		}
	}
}
