package common

import "time"

type Status int

const (
	Leader    Status = 1 // 领导者
	Follower  Status = 2 // 跟随者
	Candidate Status = 3 // 候选者

	ElectionBaseTimeout      = 500 * time.Millisecond // 选举基准超时时间
	HeartbeatInterval        = 50 * time.Millisecond  // 心跳间隔
	NetworkHeartbeatInterval = 10 * time.Second       // 网络延迟探测间隔
	StatusLogInterval        = time.Second            // 状态日志间隔

	RpcTimeout = 2000 * time.Millisecond // RPC超时时间

	SubmitTimeout      = 5500 * time.Millisecond // 客户端命令等待提交的最长时间
	SubmitPollInterval = 50 * time.Millisecond   // 等待提交时的轮询间隔

	NoVote = -1 // votedFor 未投票
	NoNode = -1 // 未知节点
)

func (s Status) String() string {
	switch s {
	case Leader:
		return "LEADER"
	case Follower:
		return "FOLLOWER"
	case Candidate:
		return "CANDIDATE"
	default:
		return "UNKNOWN"
	}
}

type LogEntry struct {
	Command string // 日志条目
	Term    int64  // 日志条目所属的任期
	Index   int64  // 日志条目的索引，从0开始
}

// State 是节点状态的快照，用于状态日志和HTTP状态接口
type State struct {
	Id           int64  `json:"id"`
	Role         string `json:"role"`
	CurrentTerm  int64  `json:"currentTerm"`
	VotedFor     int64  `json:"votedFor"`
	LeaderId     int64  `json:"leaderId"`
	LastLogIndex int64  `json:"lastLogIndex"`
	LastLogTerm  int64  `json:"lastLogTerm"`
	CommitIndex  int64  `json:"commitIndex"`
	LastApplied  int64  `json:"lastApplied"`
	MaxLmMs      *int64 `json:"maxLmMs,omitempty"`
}
