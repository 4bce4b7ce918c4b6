package raft

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// HeartbeatTimer 只在leader期间运行，每次触发先复制日志再推进提交
type HeartbeatTimer struct {
	task *periodicTask
}

func NewHeartbeatTimer(interval time.Duration, replication *ReplicationRound, commit *CommitAdvancer) *HeartbeatTimer {
	h := &HeartbeatTimer{}
	h.task = newPeriodicTask("heartbeat", interval, true, func(ctx context.Context) {
		if err := replication.Send(ctx); err != nil {
			log.Errorf("心跳复制失败: %v", err)
		}
		commit.Perform()
	})
	return h
}

func (h *HeartbeatTimer) Start() {
	h.task.Start()
}

func (h *HeartbeatTimer) Stop() {
	h.task.Stop()
}

func (h *HeartbeatTimer) Running() bool {
	return h.task.Running()
}

func (h *HeartbeatTimer) Interval() time.Duration {
	return h.task.Period()
}

// UpdateInterval 周期不变时不做任何事，否则等当前心跳结束后按新周期重新调度
func (h *HeartbeatTimer) UpdateInterval(interval time.Duration) bool {
	prev := h.task.Period()
	if !h.task.Reschedule(interval) {
		return false
	}
	log.Infof("心跳间隔更新: %v -> %v", prev, interval)
	return true
}
