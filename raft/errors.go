package raft

import "errors"

var (
	// ErrNotLeader 当前节点不是leader，不能接收客户端命令
	ErrNotLeader = errors.New("raft: not the leader")

	// ErrCommitTimeout 命令在规定时间内没有被提交
	ErrCommitTimeout = errors.New("raft: timed out waiting for commit")

	// ErrEntryOverwritten 命令所在的索引被新leader的日志覆盖
	ErrEntryOverwritten = errors.New("raft: entry overwritten by another leader")

	// ErrPeerIndexCorrupt leader记录的nextIndex指向了自己日志中不存在的条目
	ErrPeerIndexCorrupt = errors.New("raft: peer progress points past the leader log")

	// ErrNodeStopped 节点已停止
	ErrNodeStopped = errors.New("raft: node stopped")
)
