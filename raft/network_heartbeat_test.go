package raft

import (
	"context"
	"sync"
	"testing"
	"time"

	"go_raft_adaptive/raft/rpc"

	"github.com/stretchr/testify/require"
)

type recordedInterval struct {
	node     int64
	interval time.Duration
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []recordedInterval
}

func (f *fakeRecorder) Record(nodeID int64, interval time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedInterval{node: nodeID, interval: interval})
	return nil
}

func (f *fakeRecorder) all() []recordedInterval {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedInterval(nil), f.records...)
}

func ms(n int64) *int64 {
	return &n
}

func TestMajorityLatency(t *testing.T) {
	delays := map[int64]time.Duration{
		2: 30 * time.Millisecond,
		3: 10 * time.Millisecond,
		4: 20 * time.Millisecond,
	}
	require.Equal(t, 10*time.Millisecond, majorityLatency(delays, 1))
	require.Equal(t, 20*time.Millisecond, majorityLatency(delays, 2))
	require.Equal(t, 30*time.Millisecond, majorityLatency(delays, 5))
	require.Equal(t, time.Duration(0), majorityLatency(map[int64]time.Duration{}, 1))
}

func TestProbeComputesMaxLm(t *testing.T) {
	s := NewNodeState(1)
	peers, clients := newFakePeers(2, 3, 4)
	clients[0].probe = echoProbe(2, 10*time.Millisecond)
	clients[1].probe = echoProbe(3, 20*time.Millisecond)
	clients[2].probe = echoProbe(4, 30*time.Millisecond)
	probe := NewLatencyProbe(s, peers, NewElectionTimer(time.Second), nil, DefaultOptions(1), nil)

	probe.Send(context.Background())

	tel := s.Telemetry()
	require.Equal(t, map[int64]time.Duration{
		2: 10 * time.Millisecond,
		3: 20 * time.Millisecond,
		4: 30 * time.Millisecond,
	}, tel.Delays)
	require.True(t, tel.HasMaxLm)
	require.Equal(t, 10*time.Millisecond, tel.MaxLm)
	require.Equal(t, 10*time.Millisecond, tel.ThetaM[1])

	// 第一次探测还没有 maxLm，第二次会带上
	first := clients[0].probeReqs[0]
	require.Nil(t, first.MaxLm)
	require.Nil(t, first.LatencyFromLeader)

	probe.Send(context.Background())
	second := clients[0].probeReqs[1]
	require.NotNil(t, second.MaxLm)
	require.Equal(t, int64(10), *second.MaxLm)
}

func TestProbeUsesMajorityOfFivePeers(t *testing.T) {
	s := NewNodeState(1)
	peers, clients := newFakePeers(2, 3, 4, 5)
	for i, d := range []time.Duration{40, 10, 30, 20} {
		clients[i].probe = echoProbe(peers[i].ID, d*time.Millisecond)
	}
	probe := NewLatencyProbe(s, peers, NewElectionTimer(time.Second), nil, DefaultOptions(1), nil)

	probe.Send(context.Background())
	maxLm, ok := s.MaxLm()
	require.True(t, ok)
	require.Equal(t, 20*time.Millisecond, maxLm)
}

func TestProbeSkipsFailedPeers(t *testing.T) {
	s := NewNodeState(1)
	peers, clients := newFakePeers(2, 3)
	clients[0].probe = echoProbe(2, 15*time.Millisecond)
	clients[1].probe = func(_ context.Context, req *rpc.NetworkHeartbeatReq) (*rpc.NetworkHeartbeatResp, error) {
		return &rpc.NetworkHeartbeatResp{Success: false, From: 3}, nil
	}
	probe := NewLatencyProbe(s, peers, NewElectionTimer(time.Second), nil, DefaultOptions(1), nil)

	probe.Send(context.Background())
	tel := s.Telemetry()
	require.Len(t, tel.Delays, 1)
	require.Equal(t, 15*time.Millisecond, tel.Delays[2])
}

func TestElectionIntervalShape(t *testing.T) {
	a := DefaultAdaptiveParams()
	near := func(want, got time.Duration) {
		t.Helper()
		require.InDelta(t, float64(want), float64(got), float64(time.Microsecond))
	}

	// 延迟不超过下限时系数为 1
	near(420*time.Millisecond, a.electionInterval(5*time.Millisecond, false, 0))
	near(420*time.Millisecond+15*time.Millisecond, a.electionInterval(20*time.Millisecond, true, 15*time.Millisecond))
	// 延迟达到上限
	near(1125*time.Millisecond, a.electionInterval(500*time.Millisecond, true, 0))
	near(1215*time.Millisecond, a.electionInterval(500*time.Millisecond, false, 0))
	near(1215*time.Millisecond, a.electionInterval(3*time.Second, false, 0))

	// 同样的延迟下，最佳候选人总是更早超时
	for _, d := range []time.Duration{50, 100, 250, 400} {
		best := a.electionInterval(d*time.Millisecond, true, 0)
		other := a.electionInterval(d*time.Millisecond, false, 0)
		require.Less(t, best, other)
	}
}

func TestJitterWithinBounds(t *testing.T) {
	a := DefaultAdaptiveParams()
	for range 200 {
		j := a.jitter()
		require.GreaterOrEqual(t, j, a.JitterMin)
		require.LessOrEqual(t, j, a.JitterMax)
	}
}

func TestLeaderHeartbeat(t *testing.T) {
	a := DefaultAdaptiveParams()
	base := 50 * time.Millisecond
	require.Equal(t, 60*time.Millisecond, a.leaderHeartbeat(base, 10*time.Millisecond))
	require.Equal(t, base, a.leaderHeartbeat(base, 0))
	require.Equal(t, 200*time.Millisecond, a.leaderHeartbeat(base, time.Second))
	require.Equal(t, 300*time.Millisecond, a.leaderHeartbeat(300*time.Millisecond, 10*time.Millisecond))
}

func TestBestCandidate(t *testing.T) {
	_, ok := bestCandidate(map[int64]time.Duration{})
	require.False(t, ok)

	best, ok := bestCandidate(map[int64]time.Duration{5: 5 * time.Millisecond, 2: 7 * time.Millisecond})
	require.True(t, ok)
	require.Equal(t, int64(5), best)

	best, _ = bestCandidate(map[int64]time.Duration{
		3: 10 * time.Millisecond,
		1: 10 * time.Millisecond,
		2: 20 * time.Millisecond,
	})
	require.Equal(t, int64(1), best)
}

// fillTelemetry 让三个延迟表都覆盖 2 和 3 两个节点
func fillTelemetry(s *NodeState) {
	s.recordDelay(2, 10*time.Millisecond, 1)
	s.recordDelay(3, 40*time.Millisecond, 1)
	s.AppendNetworkHeartbeat(&rpc.NetworkHeartbeatReq{From: 2, MaxLm: ms(50), LatencyFromLeader: ms(30)})
	s.AppendNetworkHeartbeat(&rpc.NetworkHeartbeatReq{From: 3, MaxLm: ms(60), LatencyFromLeader: ms(35)})
}

func TestAdjustFollowerElectionInterval(t *testing.T) {
	s := NewNodeState(1)
	now := time.UnixMilli(time.Now().UnixMilli())
	s.now = fixedClock(now)
	// 当前leader 2 到本节点的延迟为 100ms
	s.AppendEntries(&rpc.AppendEntriesReq{
		Term:         1,
		LeaderId:     2,
		PrevLogIndex: -1,
		PrevLogTerm:  -1,
		LeaderCommit: -1,
		TimeSent:     now.Add(-100 * time.Millisecond).UnixMilli(),
	})
	fillTelemetry(s)

	peers, _ := newFakePeers(2, 3)
	clock := NewElectionTimer(time.Second)
	recorder := &fakeRecorder{}
	probe := NewLatencyProbe(s, peers, clock, nil, DefaultOptions(1), recorder)
	probe.adjust()

	// thetaM[1]=10ms 最小，本节点是最佳候选人: (400+100)*(1+0.25*80/480) + jitter
	scale := 1 + 0.25*80.0/480.0
	base := time.Duration(float64(500*time.Millisecond) * scale)
	got := clock.Interval()
	require.GreaterOrEqual(t, got, base+10*time.Millisecond-time.Microsecond)
	require.LessOrEqual(t, got, base+20*time.Millisecond+time.Microsecond)

	records := recorder.all()
	require.Len(t, records, 1)
	require.Equal(t, int64(1), records[0].node)
	require.Equal(t, got, records[0].interval)
}

func TestAdjustLeaderHeartbeat(t *testing.T) {
	s := newLeaderState(1, 1)
	fillTelemetry(s)

	peers, _ := newFakePeers(2, 3)
	opts := DefaultOptions(1)
	replication := NewReplicationRound(s, peers, nil, opts.ReplicationTimeout)
	heartbeat := NewHeartbeatTimer(opts.HeartbeatInterval, replication, NewCommitAdvancer(s, peers))
	clock := NewElectionTimer(time.Second)
	recorder := &fakeRecorder{}
	probe := NewLatencyProbe(s, peers, clock, heartbeat, opts, recorder)

	probe.adjust()
	require.Equal(t, 60*time.Millisecond, heartbeat.Interval())
	require.Equal(t, time.Second, clock.Interval())
	require.Equal(t, []recordedInterval{{node: 1, interval: 60 * time.Millisecond}}, recorder.all())

	// 间隔没变时不会重复记录
	probe.adjust()
	require.Len(t, recorder.all(), 1)
}

func TestAdjustWaitsForCompleteTelemetry(t *testing.T) {
	s := NewNodeState(1)
	s.recordDelay(2, 10*time.Millisecond, 1)
	s.recordDelay(3, 20*time.Millisecond, 1)

	peers, _ := newFakePeers(2, 3)
	clock := NewElectionTimer(time.Second)
	recorder := &fakeRecorder{}
	probe := NewLatencyProbe(s, peers, clock, nil, DefaultOptions(1), recorder)

	probe.adjust()
	require.Equal(t, time.Second, clock.Interval())
	require.Empty(t, recorder.all())
}
