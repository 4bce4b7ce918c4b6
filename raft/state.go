package raft

import (
	"context"
	"sort"
	"sync"
	"time"

	"go_raft_adaptive/raft/common"
	"go_raft_adaptive/raft/rpc"

	log "github.com/sirupsen/logrus"
)

// RoleChange 是角色变化通知 (prev -> current)
type RoleChange struct {
	Prev    common.Status
	Current common.Status
}

// roleQueue 是无界、有序、单消费者的角色变化队列。
// 生产者在持有状态锁时写入，所以写入永远不能阻塞。
type roleQueue struct {
	mu     sync.Mutex
	items  []RoleChange
	signal chan struct{}
}

func newRoleQueue() *roleQueue {
	return &roleQueue{signal: make(chan struct{}, 1)}
}

func (q *roleQueue) push(change RoleChange) {
	q.mu.Lock()
	q.items = append(q.items, change)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *roleQueue) next(ctx context.Context) (RoleChange, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			change := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return change, true
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return RoleChange{}, false
		case <-q.signal:
		}
	}
}

// Telemetry 是延迟数据的拷贝，调用方可以随意读取
type Telemetry struct {
	Delays             map[int64]time.Duration // 本节点到各节点的延迟
	LeaderToNodeDelays map[int64]time.Duration // 各节点到leader的延迟
	ThetaM             map[int64]time.Duration // 各节点公布的 maxLm
	MaxLm              time.Duration
	HasMaxLm           bool
	Tdlcc              time.Duration // 当前leader到本节点的延迟
	HasTdlcc           bool
}

// NodeState 是节点唯一的共享可变状态：角色、任期、投票、日志和延迟数据。
// 所有读写都必须持有 mu。
type NodeState struct {
	mu sync.Mutex

	id          int64
	role        common.Status
	currentTerm int64
	votedFor    int64
	leaderId    int64
	log         *ReplicatedLog
	lastApplied int64

	delays             map[int64]time.Duration
	leaderToNodeDelays map[int64]time.Duration
	thetaM             map[int64]time.Duration
	maxLm              time.Duration
	hasMaxLm           bool
	tdlcc              time.Duration
	hasTdlcc           bool

	updates  *roleQueue
	commitCh chan struct{}
	now      func() time.Time
}

func NewNodeState(id int64) *NodeState {
	return &NodeState{
		id:                 id,
		role:               common.Follower,
		votedFor:           common.NoVote,
		leaderId:           common.NoNode,
		log:                NewReplicatedLog(),
		lastApplied:        -1,
		delays:             make(map[int64]time.Duration),
		leaderToNodeDelays: make(map[int64]time.Duration),
		thetaM:             make(map[int64]time.Duration),
		updates:            newRoleQueue(),
		commitCh:           make(chan struct{}, 1),
		now:                time.Now,
	}
}

func (s *NodeState) Id() int64 {
	return s.id
}

func (s *NodeState) Term() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTerm
}

func (s *NodeState) Role() common.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *NodeState) IsLeader() bool {
	return s.Role() == common.Leader
}

func (s *NodeState) LeaderId() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderId
}

func (s *NodeState) VotedFor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votedFor
}

func (s *NodeState) CommitIndex() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.CommitIndex()
}

func (s *NodeState) LastIndexAndTerm() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.LastIndex(), s.log.LastTerm()
}

func (s *NodeState) EntryAt(index int64) (common.LogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Get(index)
}

// NextRoleChange 阻塞直到有新的角色变化或 ctx 结束
func (s *NodeState) NextRoleChange(ctx context.Context) (RoleChange, bool) {
	return s.updates.next(ctx)
}

// CommitNotify 在 commitIndex 前进时收到信号
func (s *NodeState) CommitNotify() <-chan struct{} {
	return s.commitCh
}

func (s *NodeState) setRoleLocked(role common.Status) {
	if s.role == role {
		return
	}
	prev := s.role
	s.role = role
	log.Debugf("节点 %d 角色变化 %v -> %v, term: %d", s.id, prev, role, s.currentTerm)
	s.updates.push(RoleChange{Prev: prev, Current: role})
}

func (s *NodeState) stepDownLocked(term int64) {
	s.currentTerm = term
	s.votedFor = common.NoVote
	s.leaderId = common.NoNode
	s.setRoleLocked(common.Follower)
}

func (s *NodeState) advanceCommitLocked(index int64) bool {
	if !s.log.AdvanceCommit(index) {
		return false
	}
	select {
	case s.commitCh <- struct{}{}:
	default:
	}
	return true
}

// NextTerm 开始新一轮选举：任期至少加一，成为候选人并给自己投票
func (s *NodeState) NextTerm(term int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if term <= s.currentTerm {
		term = s.currentTerm + 1
	}
	s.currentTerm = term
	s.votedFor = s.id
	s.leaderId = common.NoNode
	s.setRoleLocked(common.Candidate)
	return term
}

// PromoteToLeader 只有在 term 内仍然是候选人时才会成功
func (s *NodeState) PromoteToLeader(term int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.role != common.Candidate || s.currentTerm != term {
		return false
	}
	s.leaderId = s.id
	s.tdlcc, s.hasTdlcc = 0, true
	s.leaderToNodeDelays[s.id] = 0
	s.setRoleLocked(common.Leader)
	return true
}

// ObserveTerm 看到更大的任期时更新任期并成为follower
func (s *NodeState) ObserveTerm(term int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if term <= s.currentTerm {
		return false
	}
	s.stepDownLocked(term)
	return true
}

func (s *NodeState) RequestVote(req *rpc.RequestVoteReq) *rpc.RequestVoteResp {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Term < s.currentTerm {
		log.Debugf("收到了server:%d选举 我的term:%d比它:%d大，拒绝投票", req.CandidateId, s.currentTerm, req.Term)
		return &rpc.RequestVoteResp{Term: s.currentTerm, VoteGranted: false}
	}
	if req.Term > s.currentTerm {
		s.stepDownLocked(req.Term)
	}

	lastIndex, lastTerm := s.log.LastIndex(), s.log.LastTerm()
	upToDate := req.LastLogTerm > lastTerm || (req.LastLogTerm == lastTerm && req.LastLogIndex >= lastIndex)
	if !upToDate {
		log.Debugf("收到了server:%d选举 我的日志比它的新，不进行投票", req.CandidateId)
		return &rpc.RequestVoteResp{Term: s.currentTerm, VoteGranted: false}
	}
	if s.votedFor != common.NoVote && s.votedFor != req.CandidateId {
		log.Debugf("收到了server:%d选举 已经在term:%d投票给了%d", req.CandidateId, s.currentTerm, s.votedFor)
		return &rpc.RequestVoteResp{Term: s.currentTerm, VoteGranted: false}
	}
	s.votedFor = req.CandidateId
	return &rpc.RequestVoteResp{Term: s.currentTerm, VoteGranted: true}
}

func (s *NodeState) AppendEntries(req *rpc.AppendEntriesReq) *rpc.AppendEntriesResp {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Term < s.currentTerm {
		return &rpc.AppendEntriesResp{Term: s.currentTerm, Success: false, LastLogIndex: s.log.LastIndex()}
	}
	if req.Term > s.currentTerm {
		s.stepDownLocked(req.Term)
	} else {
		s.setRoleLocked(common.Follower)
	}
	s.leaderId = req.LeaderId

	if req.TimeSent > 0 {
		delay := s.now().Sub(time.UnixMilli(req.TimeSent))
		if delay < 0 {
			delay = 0
		}
		s.tdlcc, s.hasTdlcc = delay, true
		s.leaderToNodeDelays[s.id] = delay
	}

	if !s.log.Matches(req.PrevLogIndex, req.PrevLogTerm) {
		log.Debugf("日志不匹配 prevLogIndex:%d prevLogTerm:%d lastIndex:%d", req.PrevLogIndex, req.PrevLogTerm, s.log.LastIndex())
		return &rpc.AppendEntriesResp{Term: s.currentTerm, Success: false, LastLogIndex: s.log.LastIndex()}
	}

	entries := make([]common.LogEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, common.LogEntry{Command: e.Command, Term: e.Term, Index: e.Index})
	}
	if err := s.log.Merge(req.PrevLogIndex, entries); err != nil {
		log.Errorf("追加日志失败: %v", err)
		return &rpc.AppendEntriesResp{Term: s.currentTerm, Success: false, LastLogIndex: s.log.LastIndex()}
	}

	lastNew := req.PrevLogIndex + int64(len(entries))
	if req.LeaderCommit > s.log.CommitIndex() {
		s.advanceCommitLocked(min(req.LeaderCommit, lastNew))
	}
	return &rpc.AppendEntriesResp{Term: s.currentTerm, Success: true, LastLogIndex: s.log.LastIndex()}
}

// AppendNetworkHeartbeat 记录对方公布的 maxLm 和它到leader的延迟，并回显时间戳
func (s *NodeState) AppendNetworkHeartbeat(req *rpc.NetworkHeartbeatReq) *rpc.NetworkHeartbeatResp {
	s.mu.Lock()
	defer s.mu.Unlock()

	received := s.now().UnixMilli()
	if req.MaxLm != nil {
		s.thetaM[req.From] = time.Duration(*req.MaxLm) * time.Millisecond
	}
	if req.LatencyFromLeader != nil {
		s.leaderToNodeDelays[req.From] = time.Duration(*req.LatencyFromLeader) * time.Millisecond
	}
	return &rpc.NetworkHeartbeatResp{
		Success:      true,
		From:         s.id,
		TimeSent:     req.TimeSent,
		TimeReceived: received,
	}
}

// AppendCommand 由leader把客户端命令写入日志，返回索引和任期
func (s *NodeState) AppendCommand(command string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.role != common.Leader {
		return -1, s.currentTerm, ErrNotLeader
	}
	entry := s.log.Append(s.currentTerm, command)
	return entry.Index, entry.Term, nil
}

func (s *NodeState) voteRequest() *rpc.RequestVoteReq {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &rpc.RequestVoteReq{
		Term:         s.currentTerm,
		CandidateId:  s.id,
		LastLogIndex: s.log.LastIndex(),
		LastLogTerm:  s.log.LastTerm(),
	}
}

func (s *NodeState) probeRequest() *rpc.NetworkHeartbeatReq {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := &rpc.NetworkHeartbeatReq{From: s.id, TimeSent: s.now().UnixMilli()}
	if s.hasMaxLm {
		maxLm := s.maxLm.Milliseconds()
		req.MaxLm = &maxLm
	}
	if s.hasTdlcc {
		tdlcc := s.tdlcc.Milliseconds()
		req.LatencyFromLeader = &tdlcc
	}
	return req
}

// recordDelay 记录到 peer 的延迟并重新计算 maxLm：
// 升序排序后取最小的 k 个延迟中的最大值，即能到达多数节点的延迟。
func (s *NodeState) recordDelay(peer int64, delay time.Duration, k int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	s.delays[peer] = delay

	s.maxLm = majorityLatency(s.delays, k)
	s.hasMaxLm = true
	s.thetaM[s.id] = s.maxLm
	return s.maxLm
}

func majorityLatency(delays map[int64]time.Duration, k int) time.Duration {
	sorted := make([]time.Duration, 0, len(delays))
	for _, d := range delays {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if k > len(sorted) {
		k = len(sorted)
	}
	var maxLm time.Duration
	for _, d := range sorted[:k] {
		if d > maxLm {
			maxLm = d
		}
	}
	return maxLm
}

func (s *NodeState) Telemetry() Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Telemetry{
		Delays:             copyDurations(s.delays),
		LeaderToNodeDelays: copyDurations(s.leaderToNodeDelays),
		ThetaM:             copyDurations(s.thetaM),
		MaxLm:              s.maxLm,
		HasMaxLm:           s.hasMaxLm,
		Tdlcc:              s.tdlcc,
		HasTdlcc:           s.hasTdlcc,
	}
}

func (s *NodeState) MaxLm() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLm, s.hasMaxLm
}

func copyDurations(m map[int64]time.Duration) map[int64]time.Duration {
	out := make(map[int64]time.Duration, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// committedEntries 返回 (lastApplied, commitIndex] 之间的日志
func (s *NodeState) committedEntries() []common.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	commit := s.log.CommitIndex()
	if commit <= s.lastApplied {
		return nil
	}
	entries := s.log.Starting(s.lastApplied + 1)
	return entries[:commit-s.lastApplied]
}

func (s *NodeState) setLastApplied(index int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index > s.lastApplied {
		s.lastApplied = index
	}
}

func (s *NodeState) Status() common.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := common.State{
		Id:           s.id,
		Role:         s.role.String(),
		CurrentTerm:  s.currentTerm,
		VotedFor:     s.votedFor,
		LeaderId:     s.leaderId,
		LastLogIndex: s.log.LastIndex(),
		LastLogTerm:  s.log.LastTerm(),
		CommitIndex:  s.log.CommitIndex(),
		LastApplied:  s.lastApplied,
	}
	if s.hasMaxLm {
		ms := s.maxLm.Milliseconds()
		st.MaxLmMs = &ms
	}
	return st
}
