package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adaptive_raft "go_raft_adaptive"
	"go_raft_adaptive/raft"
	"go_raft_adaptive/raft/rpc"
	"go_raft_adaptive/server"
	"go_raft_adaptive/server/storage"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml config file (optional)")
	flag.Parse()

	cfg, err := adaptive_raft.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	peers := make([]*raft.ClusterPeer, 0, len(cfg.Peers()))
	var conns []*grpc.ClientConn
	for _, n := range cfg.Peers() {
		client, conn, err := rpc.NewRpcClient(n.Addr())
		if err != nil {
			log.Fatalf("create client for node %d: %v", n.Id, err)
		}
		conns = append(conns, conn)
		peers = append(peers, raft.NewClusterPeer(n.Id, n.Addr(), client))
	}

	opts := raft.DefaultOptions(cfg.Id)
	opts.ElectionTimeout = cfg.ElectionTimeout
	opts.HeartbeatInterval = cfg.HeartbeatInterval
	opts.NetworkHeartbeatInterval = cfg.NetworkHeartbeatInterval
	if cfg.IntervalLogDir != "" {
		opts.IntervalRecorder = raft.NewFileIntervalRecorder(cfg.IntervalLogDir)
	}

	engine := storage.NewMapEngine(64)
	node := raft.NewRaft(opts, peers, engine)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		log.Fatalf("listen on %d: %v", cfg.Port, err)
	}
	grpcServer := grpc.NewServer()
	rpc.RegisterRaftRpcServer(grpcServer, node)
	go func() {
		log.Infof("node %d raft rpc listening on %s", cfg.Id, lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("grpc serve: %v", err)
		}
	}()

	mux := http.NewServeMux()
	server.NewHandler(node, engine, opts.SubmitTimeout+time.Second).Register(mux)
	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HttpPort), Handler: mux}
	go func() {
		log.Infof("node %d http listening on :%d", cfg.Id, cfg.HttpPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http serve: %v", err)
		}
	}()

	node.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	node.Stop()
	grpcServer.GracefulStop()
	for _, conn := range conns {
		_ = conn.Close()
	}
}
