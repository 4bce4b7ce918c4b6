package raft

import (
	"go_raft_adaptive/raft/common"

	log "github.com/sirupsen/logrus"
)

// CommitAdvancer 根据各节点的 matchIndex 推进 leader 的 commitIndex
type CommitAdvancer struct {
	state *NodeState
	peers []*ClusterPeer
}

func NewCommitAdvancer(state *NodeState, peers []*ClusterPeer) *CommitAdvancer {
	return &CommitAdvancer{state: state, peers: peers}
}

// commitQuorum 是整个集群(包括leader自己)的多数派
func commitQuorum(peers int) int {
	return (peers+1)/2 + 1
}

func (c *CommitAdvancer) Perform() {
	matches := make([]int64, 0, len(c.peers))
	for _, p := range c.peers {
		matches = append(matches, p.MatchIndex())
	}
	if index, ok := c.state.commitByMatches(matches, commitQuorum(len(c.peers))); ok {
		log.Debugf("日志索引:%d, 超过半数match，提交索引", index)
	}
}

// commitByMatches 找到最大的 n：n 处日志属于当前任期且多数派的 matchIndex >= n。
// leader 自己总是匹配的。不能通过副本计数提交之前任期的日志。
func (s *NodeState) commitByMatches(matches []int64, quorum int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.role != common.Leader {
		return 0, false
	}
	for n := s.log.LastIndex(); n > s.log.CommitIndex(); n-- {
		term, _ := s.log.TermAt(n)
		if term != s.currentTerm {
			// 更早的日志任期只会更小
			break
		}
		count := 1
		for _, m := range matches {
			if m >= n {
				count++
			}
		}
		if count >= quorum {
			s.advanceCommitLocked(n)
			return n, true
		}
	}
	return 0, false
}
