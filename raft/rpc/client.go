package rpc

import (
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// NewRpcClient 创建到 addr 的 gRPC 客户端，连接在第一次调用时才真正建立
func NewRpcClient(addr string, opts ...grpc.DialOption) (RaftRpcClient, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		log.Errorf("connect addr %s failed: %v", addr, err)
		return nil, nil, err
	}
	return NewRaftRpcClient(conn), conn, nil
}
