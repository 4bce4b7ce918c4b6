package raft

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// ApplyCommand 把客户端命令写入leader日志并等待提交。
// 只有提交后该索引上的日志仍然是本任期写入的那一条才返回 true。
func (r *Raft) ApplyCommand(ctx context.Context, command string) (bool, error) {
	index, term, err := r.state.AppendCommand(command)
	if err != nil {
		return false, err
	}
	log.Debugf("收到客户端命令：%v，写入日志索引:%d term:%d", command, index, term)

	deadline := time.NewTimer(r.opts.SubmitTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(r.opts.SubmitPollInterval)
	defer poll.Stop()

	for {
		if index <= r.state.CommitIndex() {
			entry, ok := r.state.EntryAt(index)
			if ok && entry.Term == term {
				return true, nil
			}
			log.Warnf("日志索引:%d 已被其他leader覆盖", index)
			return false, ErrEntryOverwritten
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-r.done:
			return false, ErrNodeStopped
		case <-deadline.C:
			return false, ErrCommitTimeout
		case <-poll.C:
		}
	}
}

// startApply 在 commitIndex 前进后把新提交的日志交给状态机
func (r *Raft) startApply(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.state.CommitNotify():
			r.applyLog()
		}
	}
}

// 应用状态机，从 lastApplied+1 到 commitIndex
func (r *Raft) applyLog() {
	entries := r.state.committedEntries()
	if len(entries) == 0 {
		return
	}
	for _, entry := range entries {
		var result string
		if r.apply != nil {
			result = r.apply.ApplyCommand(entry.Command)
		}
		log.Debugf("应用日志: %v, term: %v, command: %v, result: %q", entry.Index, entry.Term, entry.Command, result)
	}
	r.state.setLastApplied(entries[len(entries)-1].Index)
}
