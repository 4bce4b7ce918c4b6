package raft

import (
	"context"

	"go_raft_adaptive/raft/rpc"

	log "github.com/sirupsen/logrus"
)

// VotingRound 向所有节点并行请求投票
type VotingRound struct {
	state   *NodeState
	peers   []*ClusterPeer
	clock   *ElectionTimer
	waiting *smoothTimeout
}

func NewVotingRound(state *NodeState, peers []*ClusterPeer, clock *ElectionTimer, params SmoothingParams) *VotingRound {
	return &VotingRound{
		state:   state,
		peers:   peers,
		clock:   clock,
		waiting: newSmoothTimeout(params),
	}
}

// voteQuorum 是需要的远端票数：floor(len(peers)/2)，候选人自己的一票不计在内。
// 单节点集群不需要任何远端票。
func voteQuorum(peers int) int {
	if peers == 0 {
		return 0
	}
	return peers / 2
}

// AskVotes 返回是否获得了多数票。单节点集群自己就是多数派。
func (v *VotingRound) AskVotes(ctx context.Context) bool {
	waitingTime := v.waiting.next(v.state.MaxLm())
	req := v.state.voteRequest()
	majority := voteQuorum(len(v.peers))

	responses := fanOut(ctx, v.peers, waitingTime, "请求投票",
		func(ctx context.Context, p *ClusterPeer) (*rpc.RequestVoteResp, error) {
			return p.RequestVote(ctx, req)
		})

	votes := 0
	for _, r := range responses {
		if r.resp.Term > req.Term {
			// 只记录更大的任期，真正的降级由下一次带有该任期的rpc完成
			log.Debugf("节点 %d 的任期 %d 比候选任期 %d 大", r.peer.ID, r.resp.Term, req.Term)
			if v.clock != nil {
				v.clock.Update(r.resp.Term)
			}
			continue
		}
		if r.resp.VoteGranted {
			votes++
		}
	}
	log.Infof("term:%d 得票:%d 需要:%d 等待时间:%v 结果:%v", req.Term, votes, majority, waitingTime, votes >= majority)
	return votes >= majority
}
