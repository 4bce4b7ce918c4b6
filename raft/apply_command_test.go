package raft

import (
	"context"
	"testing"
	"time"

	"go_raft_adaptive/raft/rpc"

	"github.com/stretchr/testify/require"
)

func newSubmitNode(timeout time.Duration, peerIDs ...int64) *Raft {
	opts := testOptions(1)
	opts.SubmitTimeout = timeout
	opts.SubmitPollInterval = 5 * time.Millisecond
	peers, _ := newFakePeers(peerIDs...)
	return NewRaft(opts, peers, nil)
}

func TestApplyCommandRequiresLeader(t *testing.T) {
	r := newSubmitNode(time.Second, 2, 3)
	ok, err := r.ApplyCommand(context.Background(), "SET a 1")
	require.ErrorIs(t, err, ErrNotLeader)
	require.False(t, ok)
	last, _ := r.State().LastIndexAndTerm()
	require.Equal(t, int64(-1), last)
}

func TestApplyCommandTimesOut(t *testing.T) {
	r := newSubmitNode(100*time.Millisecond, 2, 3)
	term := r.State().NextTerm(1)
	require.True(t, r.State().PromoteToLeader(term))

	start := time.Now()
	ok, err := r.ApplyCommand(context.Background(), "SET a 1")
	require.ErrorIs(t, err, ErrCommitTimeout)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestApplyCommandDetectsOverwrite(t *testing.T) {
	r := newSubmitNode(time.Second, 2, 3)
	s := r.State()
	term := s.NextTerm(1)
	require.True(t, s.PromoteToLeader(term))

	go func() {
		time.Sleep(30 * time.Millisecond)
		// 新leader在term 2覆盖了索引0并提交
		s.AppendEntries(&rpc.AppendEntriesReq{
			Term:         2,
			LeaderId:     2,
			PrevLogIndex: -1,
			PrevLogTerm:  -1,
			Entries:      []*rpc.LogEntry{{Command: "SET b 2", Term: 2, Index: 0}},
			LeaderCommit: 0,
		})
	}()

	ok, err := r.ApplyCommand(context.Background(), "SET a 1")
	require.ErrorIs(t, err, ErrEntryOverwritten)
	require.False(t, ok)
	entry, found := s.EntryAt(0)
	require.True(t, found)
	require.Equal(t, "SET b 2", entry.Command)
}

func TestApplyCommandCancelled(t *testing.T) {
	r := newSubmitNode(time.Second, 2, 3)
	term := r.State().NextTerm(1)
	require.True(t, r.State().PromoteToLeader(term))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	ok, err := r.ApplyCommand(ctx, "SET a 1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, ok)
}

func TestApplyCommandNodeStopped(t *testing.T) {
	r := newSubmitNode(5*time.Second, 2, 3)
	term := r.State().NextTerm(1)
	require.True(t, r.State().PromoteToLeader(term))
	r.Start()

	go func() {
		time.Sleep(50 * time.Millisecond)
		r.Stop()
	}()
	ok, err := r.ApplyCommand(context.Background(), "SET a 1")
	require.ErrorIs(t, err, ErrNodeStopped)
	require.False(t, ok)
}

func TestApplyLogDeliversInOrderOnce(t *testing.T) {
	apply := &recordingApply{}
	r := NewRaft(testOptions(1), nil, apply)
	s := r.State()
	term := s.NextTerm(1)
	require.True(t, s.PromoteToLeader(term))
	for _, cmd := range []string{"a", "b", "c"} {
		_, _, err := s.AppendCommand(cmd)
		require.NoError(t, err)
	}

	s.commitByMatches(nil, commitQuorum(0))
	r.applyLog()
	r.applyLog()
	require.Equal(t, []string{"a", "b", "c"}, apply.applied())
	require.Equal(t, int64(2), s.Status().LastApplied)
}
