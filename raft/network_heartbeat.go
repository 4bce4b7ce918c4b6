package raft

import (
	"context"
	"math/rand/v2"
	"time"

	"go_raft_adaptive/raft/common"
	"go_raft_adaptive/raft/rpc"

	log "github.com/sirupsen/logrus"
)

// AdaptiveParams 是延迟自适应控制律的可调参数
type AdaptiveParams struct {
	BaseTimeout    time.Duration // 选举超时的基础部分
	MinDelay       time.Duration // leader延迟的下限
	MaxDelay       time.Duration // leader延迟的上限
	CandidateCoeff float64       // 最佳候选人的放大系数
	OtherCoeff     float64       // 其他节点的放大系数
	JitterMin      time.Duration
	JitterMax      time.Duration
	MaxHeartbeat   time.Duration // leader心跳间隔的上限
}

func DefaultAdaptiveParams() AdaptiveParams {
	return AdaptiveParams{
		BaseTimeout:    400 * time.Millisecond,
		MinDelay:       20 * time.Millisecond,
		MaxDelay:       500 * time.Millisecond,
		CandidateCoeff: 0.25,
		OtherCoeff:     0.35,
		JitterMin:      10 * time.Millisecond,
		JitterMax:      20 * time.Millisecond,
		MaxHeartbeat:   200 * time.Millisecond,
	}
}

// electionInterval 计算新的选举超时：
// 延迟越大超时越长，延迟最小的节点(最适合当leader)系数更小，从而更早超时。
func (a AdaptiveParams) electionInterval(avgDelay time.Duration, bestCandidate bool, jitter time.Duration) time.Duration {
	clamped := min(max(avgDelay, a.MinDelay), a.MaxDelay)
	delayFactor := float64(clamped-a.MinDelay) / float64(a.MaxDelay-a.MinDelay)

	scale := 1 + a.OtherCoeff*delayFactor
	if bestCandidate {
		scale = 1 + a.CandidateCoeff*delayFactor
	}
	adaptiveBase := float64(a.BaseTimeout + clamped)
	return time.Duration(adaptiveBase*scale) + jitter
}

// leaderHeartbeat 计算leader的心跳间隔：maxLm 越大间隔越长
func (a AdaptiveParams) leaderHeartbeat(base, maxLm time.Duration) time.Duration {
	interval := base + maxLm
	if a.MaxHeartbeat > 0 && interval > a.MaxHeartbeat {
		interval = max(a.MaxHeartbeat, base)
	}
	return interval
}

func (a AdaptiveParams) jitter() time.Duration {
	if a.JitterMax <= a.JitterMin {
		return a.JitterMin
	}
	return a.JitterMin + rand.N(a.JitterMax-a.JitterMin+1)
}

// bestCandidate 返回 thetaM 最小的节点，相同时取id较小的
func bestCandidate(thetaM map[int64]time.Duration) (int64, bool) {
	best, found := int64(common.NoNode), false
	var bestTheta time.Duration
	for id, theta := range thetaM {
		if !found || theta < bestTheta || (theta == bestTheta && id < best) {
			best, bestTheta, found = id, theta, true
		}
	}
	return best, found
}

// LatencyProbe 定时探测与其他节点之间的延迟，并据此调整选举超时和心跳间隔
type LatencyProbe struct {
	state     *NodeState
	peers     []*ClusterPeer
	clock     *ElectionTimer
	heartbeat *HeartbeatTimer
	params    AdaptiveParams
	timeout   time.Duration
	baseHb    time.Duration
	recorder  IntervalRecorder
	task      *periodicTask
}

func NewLatencyProbe(state *NodeState, peers []*ClusterPeer, clock *ElectionTimer, heartbeat *HeartbeatTimer,
	opts Options, recorder IntervalRecorder) *LatencyProbe {
	p := &LatencyProbe{
		state:     state,
		peers:     peers,
		clock:     clock,
		heartbeat: heartbeat,
		params:    opts.Adaptive,
		timeout:   opts.ProbeTimeout,
		baseHb:    opts.HeartbeatInterval,
		recorder:  recorder,
	}
	p.task = newPeriodicTask("network heartbeat", opts.NetworkHeartbeatInterval, false, func(ctx context.Context) {
		p.Send(ctx)
	})
	return p
}

func (p *LatencyProbe) Start() {
	p.task.Start()
}

func (p *LatencyProbe) Stop() {
	p.task.Stop()
}

// majoritySamples 是计算 maxLm 时使用的样本个数
func (p *LatencyProbe) majoritySamples() int {
	return max(len(p.peers)/2, 1)
}

// Send 执行一次探测，并在数据齐全时运行控制律
func (p *LatencyProbe) Send(ctx context.Context) {
	if len(p.peers) == 0 {
		return
	}
	log.Debugf("节点 %d 发送网络心跳", p.state.Id())
	req := p.state.probeRequest()
	results := fanOut(ctx, p.peers, p.timeout, "网络心跳",
		func(ctx context.Context, peer *ClusterPeer) (*rpc.NetworkHeartbeatResp, error) {
			return peer.NetworkHeartbeat(ctx, req)
		})

	for _, r := range results {
		if !r.resp.Success {
			log.Infof("网络心跳失败, 节点: %d", r.peer.ID)
			continue
		}
		delay := time.Duration(r.resp.TimeReceived-r.resp.TimeSent) * time.Millisecond
		maxLm := p.state.recordDelay(r.peer.ID, delay, p.majoritySamples())
		log.Debugf("到节点 %d 的延迟: %v, maxLm: %v", r.peer.ID, delay, maxLm)
	}
	p.adjust()
}

func (p *LatencyProbe) adjust() {
	t := p.state.Telemetry()
	n := len(p.peers)
	if len(t.Delays) < n || len(t.LeaderToNodeDelays) < n || len(t.ThetaM) < n {
		log.Debugf("延迟数据不完整 delays:%d leaderToNodeDelays:%d thetaM:%d 需要:%d",
			len(t.Delays), len(t.LeaderToNodeDelays), len(t.ThetaM), n)
		return
	}

	id := p.state.Id()
	if p.state.IsLeader() {
		interval := p.params.leaderHeartbeat(p.baseHb, t.MaxLm)
		log.Infof("leader根据网络状况调整心跳间隔 maxLm: %v, 新间隔: %v", t.MaxLm, interval)
		if p.heartbeat != nil && p.heartbeat.UpdateInterval(interval) {
			p.record(interval)
		}
		return
	}

	best, _ := bestCandidate(t.ThetaM)
	avgDelay := t.LeaderToNodeDelays[id]
	interval := p.params.electionInterval(avgDelay, best == id, p.params.jitter())
	log.Infof("节点 %d 新选举超时: %v (最佳候选人: %d, leader延迟: %v)", id, interval, best, avgDelay)
	p.clock.UpdateIntervalBasedOnDelays(interval)
	p.record(interval)
}

func (p *LatencyProbe) record(interval time.Duration) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(p.state.Id(), interval); err != nil {
		log.Warnf("写入间隔日志失败: %v", err)
	}
}
