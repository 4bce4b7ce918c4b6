package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	serviceName = "rpc.RaftRpc"

	RaftRpc_RequestVote_FullMethodName      = "/rpc.RaftRpc/RequestVote"
	RaftRpc_AppendEntries_FullMethodName    = "/rpc.RaftRpc/AppendEntries"
	RaftRpc_NetworkHeartbeat_FullMethodName = "/rpc.RaftRpc/NetworkHeartbeat"
)

// RaftRpcClient 是访问其他节点的客户端接口
type RaftRpcClient interface {
	RequestVote(ctx context.Context, in *RequestVoteReq, opts ...grpc.CallOption) (*RequestVoteResp, error)
	AppendEntries(ctx context.Context, in *AppendEntriesReq, opts ...grpc.CallOption) (*AppendEntriesResp, error)
	NetworkHeartbeat(ctx context.Context, in *NetworkHeartbeatReq, opts ...grpc.CallOption) (*NetworkHeartbeatResp, error)
}

type raftRpcClient struct {
	cc grpc.ClientConnInterface
}

func NewRaftRpcClient(cc grpc.ClientConnInterface) RaftRpcClient {
	return &raftRpcClient{cc}
}

func (c *raftRpcClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Name)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *raftRpcClient) RequestVote(ctx context.Context, in *RequestVoteReq, opts ...grpc.CallOption) (*RequestVoteResp, error) {
	out := new(RequestVoteResp)
	if err := c.invoke(ctx, RaftRpc_RequestVote_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftRpcClient) AppendEntries(ctx context.Context, in *AppendEntriesReq, opts ...grpc.CallOption) (*AppendEntriesResp, error) {
	out := new(AppendEntriesResp)
	if err := c.invoke(ctx, RaftRpc_AppendEntries_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftRpcClient) NetworkHeartbeat(ctx context.Context, in *NetworkHeartbeatReq, opts ...grpc.CallOption) (*NetworkHeartbeatResp, error) {
	out := new(NetworkHeartbeatResp)
	if err := c.invoke(ctx, RaftRpc_NetworkHeartbeat_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// RaftRpcServer 由 raft.Raft 实现
type RaftRpcServer interface {
	RequestVote(context.Context, *RequestVoteReq) (*RequestVoteResp, error)
	AppendEntries(context.Context, *AppendEntriesReq) (*AppendEntriesResp, error)
	NetworkHeartbeat(context.Context, *NetworkHeartbeatReq) (*NetworkHeartbeatResp, error)
	mustEmbedUnimplementedRaftRpcServer()
}

// UnimplementedRaftRpcServer 必须被嵌入，以便后续新增方法时保持兼容
type UnimplementedRaftRpcServer struct{}

func (UnimplementedRaftRpcServer) RequestVote(context.Context, *RequestVoteReq) (*RequestVoteResp, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RequestVote not implemented")
}

func (UnimplementedRaftRpcServer) AppendEntries(context.Context, *AppendEntriesReq) (*AppendEntriesResp, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AppendEntries not implemented")
}

func (UnimplementedRaftRpcServer) NetworkHeartbeat(context.Context, *NetworkHeartbeatReq) (*NetworkHeartbeatResp, error) {
	return nil, status.Errorf(codes.Unimplemented, "method NetworkHeartbeat not implemented")
}

func (UnimplementedRaftRpcServer) mustEmbedUnimplementedRaftRpcServer() {}

func RegisterRaftRpcServer(s grpc.ServiceRegistrar, srv RaftRpcServer) {
	s.RegisterService(&RaftRpc_ServiceDesc, srv)
}

func _RaftRpc_RequestVote_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RequestVoteReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftRpcServer).RequestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RaftRpc_RequestVote_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftRpcServer).RequestVote(ctx, req.(*RequestVoteReq))
	}
	return interceptor(ctx, in, info, handler)
}

func _RaftRpc_AppendEntries_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AppendEntriesReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftRpcServer).AppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RaftRpc_AppendEntries_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftRpcServer).AppendEntries(ctx, req.(*AppendEntriesReq))
	}
	return interceptor(ctx, in, info, handler)
}

func _RaftRpc_NetworkHeartbeat_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(NetworkHeartbeatReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftRpcServer).NetworkHeartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RaftRpc_NetworkHeartbeat_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftRpcServer).NetworkHeartbeat(ctx, req.(*NetworkHeartbeatReq))
	}
	return interceptor(ctx, in, info, handler)
}

var RaftRpc_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RaftRpcServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVote", Handler: _RaftRpc_RequestVote_Handler},
		{MethodName: "AppendEntries", Handler: _RaftRpc_AppendEntries_Handler},
		{MethodName: "NetworkHeartbeat", Handler: _RaftRpc_NetworkHeartbeat_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raft_rpc.go",
}
