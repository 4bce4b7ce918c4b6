package raft

import (
	"context"
	"errors"
	"sync"
	"time"

	"go_raft_adaptive/raft/rpc"

	"google.golang.org/grpc"
)

var errUnreachable = errors.New("peer unreachable")

// fakeClient 是可编程的 RaftRpcClient，记录收到的请求
type fakeClient struct {
	mu sync.Mutex

	vote   func(ctx context.Context, req *rpc.RequestVoteReq) (*rpc.RequestVoteResp, error)
	append func(ctx context.Context, req *rpc.AppendEntriesReq) (*rpc.AppendEntriesResp, error)
	probe  func(ctx context.Context, req *rpc.NetworkHeartbeatReq) (*rpc.NetworkHeartbeatResp, error)

	voteReqs   []*rpc.RequestVoteReq
	appendReqs []*rpc.AppendEntriesReq
	probeReqs  []*rpc.NetworkHeartbeatReq
}

func (c *fakeClient) RequestVote(ctx context.Context, in *rpc.RequestVoteReq, _ ...grpc.CallOption) (*rpc.RequestVoteResp, error) {
	c.mu.Lock()
	c.voteReqs = append(c.voteReqs, in)
	fn := c.vote
	c.mu.Unlock()
	if fn == nil {
		return nil, errUnreachable
	}
	return fn(ctx, in)
}

func (c *fakeClient) AppendEntries(ctx context.Context, in *rpc.AppendEntriesReq, _ ...grpc.CallOption) (*rpc.AppendEntriesResp, error) {
	c.mu.Lock()
	c.appendReqs = append(c.appendReqs, in)
	fn := c.append
	c.mu.Unlock()
	if fn == nil {
		return nil, errUnreachable
	}
	return fn(ctx, in)
}

func (c *fakeClient) NetworkHeartbeat(ctx context.Context, in *rpc.NetworkHeartbeatReq, _ ...grpc.CallOption) (*rpc.NetworkHeartbeatResp, error) {
	c.mu.Lock()
	c.probeReqs = append(c.probeReqs, in)
	fn := c.probe
	c.mu.Unlock()
	if fn == nil {
		return nil, errUnreachable
	}
	return fn(ctx, in)
}

func (c *fakeClient) lastAppend() *rpc.AppendEntriesReq {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.appendReqs) == 0 {
		return nil
	}
	return c.appendReqs[len(c.appendReqs)-1]
}

func (c *fakeClient) appendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.appendReqs)
}

func grantVote(_ context.Context, req *rpc.RequestVoteReq) (*rpc.RequestVoteResp, error) {
	return &rpc.RequestVoteResp{Term: req.Term, VoteGranted: true}, nil
}

func denyVote(_ context.Context, req *rpc.RequestVoteReq) (*rpc.RequestVoteResp, error) {
	return &rpc.RequestVoteResp{Term: req.Term, VoteGranted: false}, nil
}

func acceptAppend(_ context.Context, req *rpc.AppendEntriesReq) (*rpc.AppendEntriesResp, error) {
	return &rpc.AppendEntriesResp{Term: req.Term, Success: true, LastLogIndex: req.PrevLogIndex + int64(len(req.Entries))}, nil
}

// echoProbe 模拟一个延迟为 delay 的节点
func echoProbe(from int64, delay time.Duration) func(context.Context, *rpc.NetworkHeartbeatReq) (*rpc.NetworkHeartbeatResp, error) {
	return func(_ context.Context, req *rpc.NetworkHeartbeatReq) (*rpc.NetworkHeartbeatResp, error) {
		return &rpc.NetworkHeartbeatResp{
			Success:      true,
			From:         from,
			TimeSent:     req.TimeSent,
			TimeReceived: req.TimeSent + delay.Milliseconds(),
		}, nil
	}
}

func blockUntilCancelled[Req, Resp any](ctx context.Context, _ Req) (Resp, error) {
	var zero Resp
	<-ctx.Done()
	return zero, ctx.Err()
}

func newFakePeers(ids ...int64) ([]*ClusterPeer, []*fakeClient) {
	peers := make([]*ClusterPeer, 0, len(ids))
	clients := make([]*fakeClient, 0, len(ids))
	for _, id := range ids {
		c := &fakeClient{}
		clients = append(clients, c)
		peers = append(peers, NewClusterPeer(id, "fake", c))
	}
	return peers, clients
}

// newLeaderState 返回在 term 成为leader的状态，并按顺序写入 commands
func newLeaderState(id, term int64, commands ...string) *NodeState {
	s := NewNodeState(id)
	s.NextTerm(term)
	s.PromoteToLeader(term)
	for _, cmd := range commands {
		_, _, _ = s.AppendCommand(cmd)
	}
	return s
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
