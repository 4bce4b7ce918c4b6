package raft

import (
	"context"
	"sync"

	"go_raft_adaptive/raft/rpc"
)

// ClusterPeer 代表集群中的一个远端节点，保存与该节点通信的rpc入口以及leader侧的复制进度。
// nextIndex/matchIndex 由复制轮次写、由提交推进读，因此单独加锁。
type ClusterPeer struct {
	ID     int64
	Addr   string
	client rpc.RaftRpcClient

	mu         sync.Mutex
	nextIndex  int64 // 下一次将要发送给该节点的日志索引
	matchIndex int64 // 已经复制到该节点的最高日志索引，-1表示还没有
	alive      bool  // 最近一次rpc是否成功
}

func NewClusterPeer(id int64, addr string, client rpc.RaftRpcClient) *ClusterPeer {
	return &ClusterPeer{
		ID:         id,
		Addr:       addr,
		client:     client,
		matchIndex: -1,
	}
}

func (p *ClusterPeer) RequestVote(ctx context.Context, req *rpc.RequestVoteReq) (*rpc.RequestVoteResp, error) {
	return p.client.RequestVote(ctx, req)
}

func (p *ClusterPeer) AppendEntries(ctx context.Context, req *rpc.AppendEntriesReq) (*rpc.AppendEntriesResp, error) {
	resp, err := p.client.AppendEntries(ctx, req)
	p.setAlive(err == nil)
	return resp, err
}

func (p *ClusterPeer) NetworkHeartbeat(ctx context.Context, req *rpc.NetworkHeartbeatReq) (*rpc.NetworkHeartbeatResp, error) {
	return p.client.NetworkHeartbeat(ctx, req)
}

func (p *ClusterPeer) NextIndex() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextIndex
}

func (p *ClusterPeer) MatchIndex() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matchIndex
}

func (p *ClusterPeer) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *ClusterPeer) setAlive(alive bool) {
	p.mu.Lock()
	p.alive = alive
	p.mu.Unlock()
}

// ReinitializeIndex 在成为leader时调用，n 为 leader 的 lastIndex+1
func (p *ClusterPeer) ReinitializeIndex(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextIndex = n
	p.matchIndex = -1
}

// DecreaseIndex 在follower拒绝AppendEntries后回退nextIndex。
// hint 为follower的lastIndex，比逐条回退更小时直接跳到 hint+1。
func (p *ClusterPeer) DecreaseIndex(hint int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.nextIndex - 1
	if hint+1 < next {
		next = hint + 1
	}
	if next < 0 {
		next = 0
	}
	p.nextIndex = next
}

// setReplicated 记录一次成功复制，只会让 matchIndex 前进
func (p *ClusterPeer) setReplicated(match int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if match > p.matchIndex {
		p.matchIndex = match
	}
	p.nextIndex = p.matchIndex + 1
}
