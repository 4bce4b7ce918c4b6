package raft

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// periodicTask 按固定周期执行 fn。
// Stop 和 Reschedule 会等待正在执行的那一次结束，因此改周期不会和执行并发，也不会重复触发。
type periodicTask struct {
	name      string
	fn        func(ctx context.Context)
	immediate bool // 启动时先执行一次

	mu      sync.Mutex
	period  time.Duration
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newPeriodicTask(name string, period time.Duration, immediate bool, fn func(ctx context.Context)) *periodicTask {
	return &periodicTask{
		name:      name,
		fn:        fn,
		immediate: immediate,
		period:    period,
	}
}

func (p *periodicTask) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.launchLocked(p.immediate)
}

func (p *periodicTask) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked()
}

func (p *periodicTask) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *periodicTask) Period() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.period
}

// Reschedule 修改周期，周期不变时什么都不做并返回 false
func (p *periodicTask) Reschedule(period time.Duration) bool {
	if period <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if period == p.period {
		return false
	}
	p.period = period
	if p.running {
		p.haltLocked()
		p.launchLocked(false)
	}
	return true
}

func (p *periodicTask) launchLocked(immediate bool) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running = true
	go p.loop(ctx, p.period, immediate, done)
}

func (p *periodicTask) haltLocked() {
	if !p.running {
		return
	}
	p.cancel()
	<-p.done
	p.running = false
}

func (p *periodicTask) loop(ctx context.Context, period time.Duration, immediate bool, done chan struct{}) {
	defer close(done)
	if immediate {
		p.tick(ctx)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *periodicTask) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s 执行失败: %v", p.name, r)
		}
	}()
	if ctx.Err() != nil {
		return
	}
	p.fn(ctx)
}
