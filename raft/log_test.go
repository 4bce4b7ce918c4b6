package raft

import (
	"testing"

	"go_raft_adaptive/raft/common"

	"github.com/stretchr/testify/require"
)

func terms(l *ReplicatedLog) []int64 {
	out := make([]int64, 0, l.Len())
	for _, e := range l.Starting(0) {
		out = append(out, e.Term)
	}
	return out
}

func TestEmptyLog(t *testing.T) {
	l := NewReplicatedLog()
	require.Equal(t, int64(-1), l.LastIndex())
	require.Equal(t, int64(-1), l.LastTerm())
	require.Equal(t, int64(-1), l.CommitIndex())

	term, ok := l.TermAt(-1)
	require.True(t, ok)
	require.Equal(t, int64(-1), term)

	_, ok = l.TermAt(0)
	require.False(t, ok)
	require.Nil(t, l.Starting(0))
	require.True(t, l.Matches(-1, -1))
	require.False(t, l.Matches(0, 1))
}

func TestAppendAndStarting(t *testing.T) {
	l := NewReplicatedLog()
	l.Append(1, "a")
	l.Append(1, "b")
	e := l.Append(2, "c")

	require.Equal(t, int64(2), e.Index)
	require.Equal(t, int64(2), l.LastIndex())
	require.Equal(t, int64(2), l.LastTerm())

	suffix := l.Starting(1)
	require.Len(t, suffix, 2)
	require.Equal(t, "b", suffix[0].Command)

	// 返回的是拷贝
	suffix[0].Command = "changed"
	got, ok := l.Get(1)
	require.True(t, ok)
	require.Equal(t, "b", got.Command)
}

func TestMergeTruncatesOnlyConflictingSuffix(t *testing.T) {
	l := NewReplicatedLog()
	l.Append(1, "a")
	l.Append(1, "b")
	l.Append(1, "c")

	err := l.Merge(0, []common.LogEntry{{Term: 1, Command: "b"}, {Term: 2, Command: "z"}})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 1, 2}, terms(l))
	last, _ := l.Get(2)
	require.Equal(t, "z", last.Command)
	require.Equal(t, int64(2), last.Index)
}

func TestMergeKeepsLongerMatchingLog(t *testing.T) {
	l := NewReplicatedLog()
	l.Append(1, "a")
	l.Append(1, "b")
	l.Append(1, "c")

	// 延迟到达的旧请求不能截断已经存在的日志
	require.NoError(t, l.Merge(-1, []common.LogEntry{{Term: 1, Command: "a"}}))
	require.Equal(t, int64(2), l.LastIndex())
}

func TestMergeRejectsMissingPrev(t *testing.T) {
	l := NewReplicatedLog()
	l.Append(1, "a")
	require.Error(t, l.Merge(3, []common.LogEntry{{Term: 1}}))
	require.Equal(t, int64(0), l.LastIndex())
}

func TestMergeRefusesToRewriteCommitted(t *testing.T) {
	l := NewReplicatedLog()
	l.Append(1, "a")
	l.AdvanceCommit(0)
	require.Error(t, l.Merge(-1, []common.LogEntry{{Term: 2, Command: "x"}}))
	got, _ := l.Get(0)
	require.Equal(t, "a", got.Command)
}

func TestAdvanceCommitIsMonotonicAndBounded(t *testing.T) {
	l := NewReplicatedLog()
	l.Append(1, "a")
	l.Append(1, "b")

	require.True(t, l.AdvanceCommit(5))
	require.Equal(t, int64(1), l.CommitIndex())
	require.False(t, l.AdvanceCommit(0))
	require.Equal(t, int64(1), l.CommitIndex())
}
