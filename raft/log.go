package raft

import (
	"fmt"

	"go_raft_adaptive/raft/common"
)

// ReplicatedLog 是内存中的日志，下标从0开始，空日志的 lastIndex 为 -1。
// 本身不加锁，由 NodeState 的锁保护。
type ReplicatedLog struct {
	entries     []common.LogEntry
	commitIndex int64
}

func NewReplicatedLog() *ReplicatedLog {
	return &ReplicatedLog{commitIndex: -1}
}

func (l *ReplicatedLog) LastIndex() int64 {
	return int64(len(l.entries)) - 1
}

func (l *ReplicatedLog) LastTerm() int64 {
	if len(l.entries) == 0 {
		return -1
	}
	return l.entries[len(l.entries)-1].Term
}

func (l *ReplicatedLog) Len() int {
	return len(l.entries)
}

func (l *ReplicatedLog) Get(index int64) (common.LogEntry, bool) {
	if index < 0 || index > l.LastIndex() {
		return common.LogEntry{}, false
	}
	return l.entries[index], true
}

// TermAt 返回 index 处日志的任期，index 为 -1 时返回哨兵值 -1
func (l *ReplicatedLog) TermAt(index int64) (int64, bool) {
	if index == -1 {
		return -1, true
	}
	entry, ok := l.Get(index)
	if !ok {
		return 0, false
	}
	return entry.Term, true
}

// Starting 返回从 index 开始的所有日志的拷贝
func (l *ReplicatedLog) Starting(index int64) []common.LogEntry {
	if index < 0 {
		index = 0
	}
	if index > l.LastIndex() {
		return nil
	}
	out := make([]common.LogEntry, len(l.entries)-int(index))
	copy(out, l.entries[index:])
	return out
}

func (l *ReplicatedLog) Append(term int64, command string) common.LogEntry {
	entry := common.LogEntry{
		Command: command,
		Term:    term,
		Index:   l.LastIndex() + 1,
	}
	l.entries = append(l.entries, entry)
	return entry
}

// Matches 判断本地日志在 prevIndex 处是否有任期为 prevTerm 的条目
func (l *ReplicatedLog) Matches(prevIndex, prevTerm int64) bool {
	term, ok := l.TermAt(prevIndex)
	return ok && term == prevTerm
}

// Merge 把 leader 发来的日志接在 prevIndex 之后。
// 只有出现冲突(同一索引不同任期)时才截断后面的日志，已经存在的相同条目保持不变。
func (l *ReplicatedLog) Merge(prevIndex int64, entries []common.LogEntry) error {
	if _, ok := l.TermAt(prevIndex); !ok {
		return fmt.Errorf("merge after missing index %d", prevIndex)
	}
	for i, entry := range entries {
		index := prevIndex + 1 + int64(i)
		if index <= l.LastIndex() {
			if l.entries[index].Term == entry.Term {
				continue
			}
			if index <= l.commitIndex {
				return fmt.Errorf("conflict at committed index %d (commitIndex %d)", index, l.commitIndex)
			}
			l.entries = l.entries[:index]
		}
		entry.Index = index
		l.entries = append(l.entries, entry)
	}
	return nil
}

func (l *ReplicatedLog) CommitIndex() int64 {
	return l.commitIndex
}

// AdvanceCommit 只向前推进 commitIndex，且不超过最后一条日志
func (l *ReplicatedLog) AdvanceCommit(index int64) bool {
	if index > l.LastIndex() {
		index = l.LastIndex()
	}
	if index <= l.commitIndex {
		return false
	}
	l.commitIndex = index
	return true
}
