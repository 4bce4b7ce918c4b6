package raft

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type peerResult[T any] struct {
	peer *ClusterPeer
	resp T
}

// fanOut 并行地对每个节点调用 call，每个调用有自己独立的超时。
// 失败或超时的节点直接被丢弃，不会影响其他节点。
func fanOut[T any](ctx context.Context, peers []*ClusterPeer, timeout time.Duration, name string,
	call func(ctx context.Context, p *ClusterPeer) (T, error)) []peerResult[T] {
	results := make([]*peerResult[T], len(peers))
	var g errgroup.Group
	for i, p := range peers {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			resp, err := call(callCtx, p)
			if err != nil {
				log.Debugf("%s 节点 %d 失败: %v", name, p.ID, err)
				return nil
			}
			results[i] = &peerResult[T]{peer: p, resp: resp}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]peerResult[T], 0, len(peers))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
