package rpc

// 以下消息通过 json 编解码器在 gRPC 上传输，字段与 RaftRpc 服务的三个方法一一对应

type LogEntry struct {
	Command string `json:"command"`
	Term    int64  `json:"term"`
	Index   int64  `json:"index"`
}

type RequestVoteReq struct {
	Term         int64 `json:"term"`         // 候选人的任期
	CandidateId  int64 `json:"candidateId"`  // 请求投票的候选人id
	LastLogIndex int64 `json:"lastLogIndex"` // 候选人最后一条日志的索引，空日志为-1
	LastLogTerm  int64 `json:"lastLogTerm"`  // 候选人最后一条日志的任期，空日志为-1
}

type RequestVoteResp struct {
	Term        int64 `json:"term"`        // 当前任期，候选人用来更新自己
	VoteGranted bool  `json:"voteGranted"` // 是否投票
}

type AppendEntriesReq struct {
	Term         int64       `json:"term"`         // leader的任期
	LeaderId     int64       `json:"leaderId"`     // leader的id
	PrevLogIndex int64       `json:"prevLogIndex"` // 新日志之前那条日志的索引，-1表示从头开始
	PrevLogTerm  int64       `json:"prevLogTerm"`  // prevLogIndex 对应的任期
	Entries      []*LogEntry `json:"entries"`      // 需要追加的日志，心跳时为空
	LeaderCommit int64       `json:"leaderCommit"` // leader的commitIndex
	TimeSent     int64       `json:"timeSent"`     // leader发送时间(unix毫秒)，follower据此计算与leader之间的延迟
}

type AppendEntriesResp struct {
	Term         int64 `json:"term"`
	Success      bool  `json:"success"`
	LastLogIndex int64 `json:"lastLogIndex"` // follower最后一条日志的索引，拒绝时作为leader回退nextIndex的提示
}

type NetworkHeartbeatReq struct {
	From              int64  `json:"from"`
	TimeSent          int64  `json:"timeSent"`                    // unix毫秒
	MaxLm             *int64 `json:"maxLm,omitempty"`             // 发送方的 maxLm(毫秒)
	LatencyFromLeader *int64 `json:"latencyFromLeader,omitempty"` // 发送方到leader的延迟(毫秒)
}

type NetworkHeartbeatResp struct {
	Success      bool  `json:"success"`
	From         int64 `json:"from"`
	TimeSent     int64 `json:"timeSent"`
	TimeReceived int64 `json:"timeReceived"`
}
