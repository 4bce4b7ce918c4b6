package raft

import (
	"context"
	"sync"
	"time"

	"go_raft_adaptive/raft/common"
	"go_raft_adaptive/raft/rpc"
	"go_raft_adaptive/raft/state_machine_interface"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options 是节点的运行参数，由外部配置转换而来
type Options struct {
	Id                       int64
	ElectionTimeout          time.Duration
	HeartbeatInterval        time.Duration
	NetworkHeartbeatInterval time.Duration
	ProbeTimeout             time.Duration
	StatusInterval           time.Duration // 0 表示不输出状态日志
	SubmitTimeout            time.Duration
	SubmitPollInterval       time.Duration

	VoteTimeout        SmoothingParams
	ReplicationTimeout SmoothingParams
	Adaptive           AdaptiveParams

	IntervalRecorder IntervalRecorder // 可为空
}

func DefaultOptions(id int64) Options {
	return Options{
		Id:                       id,
		ElectionTimeout:          common.ElectionBaseTimeout,
		HeartbeatInterval:        common.HeartbeatInterval,
		NetworkHeartbeatInterval: common.NetworkHeartbeatInterval,
		ProbeTimeout:             common.RpcTimeout,
		StatusInterval:           common.StatusLogInterval,
		SubmitTimeout:            common.SubmitTimeout,
		SubmitPollInterval:       common.SubmitPollInterval,
		VoteTimeout:              DefaultVoteTimeout(),
		ReplicationTimeout:       DefaultReplicationTimeout(),
		Adaptive:                 DefaultAdaptiveParams(),
	}
}

type NodeInfo struct {
	Id         int64  `json:"id"`
	Addr       string `json:"addr"`       // 节点地址
	Alive      bool   `json:"alive"`      // 节点是否存活
	NextIndex  int64  `json:"nextIndex"`  // leader侧记录的复制进度
	MatchIndex int64  `json:"matchIndex"` // leader侧记录的复制进度
}

// Raft 把状态、计时器和三个协议动作组装在一起，并对外提供rpc处理和客户端提交入口
type Raft struct {
	rpc.UnimplementedRaftRpcServer

	opts  Options
	me    int64
	state *NodeState
	peers []*ClusterPeer

	clock       *ElectionTimer
	voting      *VotingRound
	replication *ReplicationRound
	commit      *CommitAdvancer
	heartbeat   *HeartbeatTimer
	probe       *LatencyProbe
	statusLog   *periodicTask

	// 状态机应用指令
	apply state_machine_interface.Apply

	mutex   sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	done    chan struct{}
}

func NewRaft(opts Options, peers []*ClusterPeer, apply state_machine_interface.Apply) *Raft {
	state := NewNodeState(opts.Id)
	clock := NewElectionTimer(opts.ElectionTimeout)
	replication := NewReplicationRound(state, peers, clock, opts.ReplicationTimeout)
	commit := NewCommitAdvancer(state, peers)
	heartbeat := NewHeartbeatTimer(opts.HeartbeatInterval, replication, commit)

	r := &Raft{
		opts:        opts,
		me:          opts.Id,
		state:       state,
		peers:       peers,
		clock:       clock,
		voting:      NewVotingRound(state, peers, clock, opts.VoteTimeout),
		replication: replication,
		commit:      commit,
		heartbeat:   heartbeat,
		probe:       NewLatencyProbe(state, peers, clock, heartbeat, opts, opts.IntervalRecorder),
		apply:       apply,
		done:        make(chan struct{}),
	}
	if opts.StatusInterval > 0 {
		r.statusLog = newPeriodicTask("status logger", opts.StatusInterval, false, func(context.Context) {
			r.logStatus()
		})
	}
	return r
}

func (r *Raft) GetMeId() int64 {
	return r.me
}

func (r *Raft) State() *NodeState {
	return r.state
}

func (r *Raft) Status() common.State {
	return r.state.Status()
}

func (r *Raft) IsLeader() bool {
	return r.state.IsLeader()
}

// LeaderAddr 返回当前leader的地址，未知时返回空字符串
func (r *Raft) LeaderAddr() string {
	leader := r.state.LeaderId()
	for _, p := range r.peers {
		if p.ID == leader {
			return p.Addr
		}
	}
	return ""
}

func (r *Raft) GetNodeInfos() []NodeInfo {
	infos := make([]NodeInfo, 0, len(r.peers))
	for _, p := range r.peers {
		infos = append(infos, NodeInfo{
			Id:         p.ID,
			Addr:       p.Addr,
			Alive:      p.Alive(),
			NextIndex:  p.NextIndex(),
			MatchIndex: p.MatchIndex(),
		})
	}
	return infos
}

// Start 启动选举计时器、选举循环、角色订阅、应用循环和延迟探测
func (r *Raft) Start() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.running || r.stopped {
		return
	}
	r.running = true

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.group, ctx = errgroup.WithContext(ctx)

	// 先解冻计时器，之后角色订阅才能在成为leader时冻结它
	r.clock.Start()
	r.group.Go(func() error { r.clock.Run(ctx); return nil })
	r.group.Go(func() error { return r.startElection(ctx) })
	r.group.Go(func() error { return r.watchRole(ctx) })
	r.group.Go(func() error { return r.startApply(ctx) })

	r.probe.Start()
	if r.statusLog != nil {
		r.statusLog.Start()
	}
	log.Infof("节点 %d 启动, 集群节点数: %d", r.me, len(r.peers)+1)
}

// Stop 依次停止选举、心跳和延迟探测，并等待它们全部退出
func (r *Raft) Stop() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.stopped = true

	r.clock.Freeze()
	r.cancel()
	_ = r.group.Wait()
	r.heartbeat.Stop()
	r.probe.Stop()
	if r.statusLog != nil {
		r.statusLog.Stop()
	}
	close(r.done)
	log.Infof("节点 %d 已停止", r.me)
}

// startElection 每次选举超时开始一轮选举
func (r *Raft) startElection(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case term := <-r.clock.C():
			if r.state.IsLeader() {
				continue
			}
			term = r.state.NextTerm(term)
			r.clock.Update(term)
			log.Infof("节点 %d 选举超时，开始term:%d的选举", r.me, term)
			if !r.voting.AskVotes(ctx) {
				log.Infof("节点 %d 在term:%d没有获得多数票", r.me, term)
				continue
			}
			if r.state.PromoteToLeader(term) {
				log.Infof("节点 %d 赢得了term:%d的选举，成为leader", r.me, term)
			}
		}
	}
}

// watchRole 是角色变化的唯一消费者，负责计时器的切换：
// 成为leader时先冻结选举计时器再启动心跳，失去leader时先停止心跳再恢复选举计时器
func (r *Raft) watchRole(ctx context.Context) error {
	for {
		change, ok := r.state.NextRoleChange(ctx)
		if !ok {
			return nil
		}
		switch {
		case change.Current == common.Leader:
			lastIndex, _ := r.state.LastIndexAndTerm()
			for _, p := range r.peers {
				p.ReinitializeIndex(lastIndex + 1)
			}
			r.clock.Freeze()
			r.heartbeat.Start()
		case change.Prev == common.Leader:
			r.heartbeat.Stop()
			r.clock.Start()
		}
	}
}

func (r *Raft) actualizeTerm(term int64) {
	if r.clock.Term() < term {
		r.clock.Update(term)
	}
}

func (r *Raft) RequestVote(_ context.Context, req *rpc.RequestVoteReq) (*rpc.RequestVoteResp, error) {
	r.actualizeTerm(req.Term)
	resp := r.state.RequestVote(req)
	if resp.VoteGranted {
		r.clock.Reset()
	}
	log.Infof("投票请求: 候选人 %d, term %d, 结果: %v", req.CandidateId, req.Term, resp.VoteGranted)
	return resp, nil
}

func (r *Raft) AppendEntries(_ context.Context, req *rpc.AppendEntriesReq) (*rpc.AppendEntriesResp, error) {
	r.actualizeTerm(req.Term)
	resp := r.state.AppendEntries(req)
	if req.Term >= r.state.Term() {
		r.clock.Reset()
	}
	return resp, nil
}

func (r *Raft) NetworkHeartbeat(_ context.Context, req *rpc.NetworkHeartbeatReq) (*rpc.NetworkHeartbeatResp, error) {
	return r.state.AppendNetworkHeartbeat(req), nil
}

func (r *Raft) logStatus() {
	entry := log.WithField("node", r.me)
	st := r.state.Status()
	entry.Infof("role:%s term:%d leader:%d lastLogIndex:%d commitIndex:%d lastApplied:%d",
		st.Role, st.CurrentTerm, st.LeaderId, st.LastLogIndex, st.CommitIndex, st.LastApplied)
	if st.Role != common.Leader.String() {
		return
	}
	for _, info := range r.GetNodeInfos() {
		entry.Infof("peer:%d next:%d match:%d alive:%v", info.Id, info.NextIndex, info.MatchIndex, info.Alive)
	}
}
