package raft

import (
	"context"
	"fmt"

	"go_raft_adaptive/raft/common"
	"go_raft_adaptive/raft/rpc"

	log "github.com/sirupsen/logrus"
)

// ReplicationRound 是leader的一次日志复制/心跳，非leader时什么都不做
type ReplicationRound struct {
	state   *NodeState
	peers   []*ClusterPeer
	clock   *ElectionTimer
	waiting *smoothTimeout
}

func NewReplicationRound(state *NodeState, peers []*ClusterPeer, clock *ElectionTimer, params SmoothingParams) *ReplicationRound {
	return &ReplicationRound{
		state:   state,
		peers:   peers,
		clock:   clock,
		waiting: newSmoothTimeout(params),
	}
}

type appendResult struct {
	req  *rpc.AppendEntriesReq
	resp *rpc.AppendEntriesResp
}

// appendRequestFor 构造发送给 nextIndex 的 AppendEntries 请求。
// prevIndex 为正但本地没有对应日志，说明复制进度表已经损坏。
func (s *NodeState) appendRequestFor(nextIndex int64) (*rpc.AppendEntriesReq, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.role != common.Leader {
		return nil, false, nil
	}
	prevIndex := nextIndex - 1
	prevTerm, ok := s.log.TermAt(prevIndex)
	if !ok {
		return nil, true, fmt.Errorf("%w: prevIndex %d, lastIndex %d", ErrPeerIndexCorrupt, prevIndex, s.log.LastIndex())
	}
	req := &rpc.AppendEntriesReq{
		Term:         s.currentTerm,
		LeaderId:     s.id,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		LeaderCommit: s.log.CommitIndex(),
		TimeSent:     s.now().UnixMilli(),
	}
	for _, e := range s.log.Starting(prevIndex + 1) {
		req.Entries = append(req.Entries, &rpc.LogEntry{Command: e.Command, Term: e.Term, Index: e.Index})
	}
	return req, true, nil
}

// Send 并行地给所有follower发送AppendEntries，超时的节点本轮直接跳过
func (h *ReplicationRound) Send(ctx context.Context) error {
	if !h.state.IsLeader() {
		return nil
	}
	reqs := make(map[int64]*rpc.AppendEntriesReq, len(h.peers))
	for _, p := range h.peers {
		req, leader, err := h.state.appendRequestFor(p.NextIndex())
		if err != nil {
			return fmt.Errorf("peer %d: %w", p.ID, err)
		}
		if !leader {
			return nil
		}
		reqs[p.ID] = req
	}

	waitingTime := h.waiting.next(h.state.MaxLm())
	results := fanOut(ctx, h.peers, waitingTime, "发送心跳",
		func(ctx context.Context, p *ClusterPeer) (appendResult, error) {
			req := reqs[p.ID]
			resp, err := p.AppendEntries(ctx, req)
			return appendResult{req: req, resp: resp}, err
		})

	for _, r := range results {
		h.handleResponse(r.peer, r.resp.req, r.resp.resp)
	}
	return nil
}

func (h *ReplicationRound) handleResponse(p *ClusterPeer, req *rpc.AppendEntriesReq, resp *rpc.AppendEntriesResp) {
	if resp.Term > req.Term {
		log.Debugf("收到server:%d日志心跳回复，它的term:%d比我:%d的大，成为Follower", p.ID, resp.Term, req.Term)
		if h.state.ObserveTerm(resp.Term) && h.clock != nil {
			h.clock.Update(resp.Term)
		}
		return
	}
	// 响应到达时已经不是这个任期的leader了
	if h.state.Role() != common.Leader || h.state.Term() != req.Term {
		return
	}
	if resp.Success {
		match := req.PrevLogIndex + int64(len(req.Entries))
		p.setReplicated(match)
		log.Debugf("收到server:%d日志心跳回复，成功。nextIndex:%d, matchIndex:%d", p.ID, p.NextIndex(), p.MatchIndex())
		return
	}
	p.DecreaseIndex(resp.LastLogIndex)
	log.Debugf("收到server:%d日志心跳回复，日志不一致，回退nextIndex:%d", p.ID, p.NextIndex())
}
