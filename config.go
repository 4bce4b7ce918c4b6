package adaptive_raft

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeData 是集群中一个节点的地址
type NodeData struct {
	Id   int64  `yaml:"id"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (n NodeData) Addr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

type Config struct {
	Id                       int64         `yaml:"id"`
	Port                     int           `yaml:"port"`      // gRPC 端口
	HttpPort                 int           `yaml:"http_port"` // 客户端 HTTP 端口
	Nodes                    []NodeData    `yaml:"nodes"`
	ElectionTimeout          time.Duration `yaml:"election_timeout"`
	HeartbeatInterval        time.Duration `yaml:"heartbeat_interval"`
	NetworkHeartbeatInterval time.Duration `yaml:"network_heartbeat_interval"`
	LogLevel                 string        `yaml:"log_level"`
	IntervalLogDir           string        `yaml:"interval_log_dir"` // 为空时不记录间隔调整
}

func DefaultConfig() *Config {
	return &Config{
		Id:                       50,
		Port:                     4040,
		HttpPort:                 8080,
		Nodes:                    []NodeData{{Id: 50, Host: "localhost", Port: 4040}},
		ElectionTimeout:          500 * time.Millisecond,
		HeartbeatInterval:        50 * time.Millisecond,
		NetworkHeartbeatInterval: 10 * time.Second,
		LogLevel:                 "info",
	}
}

// LoadConfig 依次应用默认值、yaml 文件(path 为空或文件不存在时跳过)和环境变量
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var err error
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok && err == nil {
			*dst, err = strconv.Atoi(v)
			if err != nil {
				err = fmt.Errorf("env %s: %w", key, err)
			}
		}
	}
	setMillis := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && err == nil {
			var ms int64
			ms, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				err = fmt.Errorf("env %s: %w", key, err)
				return
			}
			*dst = time.Duration(ms) * time.Millisecond
		}
	}

	if v, ok := lookup("ID"); ok {
		id, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return fmt.Errorf("env ID: %w", perr)
		}
		c.Id = id
	}
	setInt("PORT", &c.Port)
	setInt("HTTP_PORT", &c.HttpPort)
	setMillis("TIMER", &c.ElectionTimeout)
	setMillis("HEARTBEAT_TIMER", &c.HeartbeatInterval)
	setMillis("NETWORK_HEARTBEAT_TIMER", &c.NetworkHeartbeatInterval)
	if err != nil {
		return err
	}
	if v, ok := lookup("NODES"); ok {
		nodes, perr := ParseNodes(v)
		if perr != nil {
			return fmt.Errorf("env NODES: %w", perr)
		}
		c.Nodes = nodes
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("INTERVAL_LOG_DIR"); ok {
		c.IntervalLogDir = v
	}
	return nil
}

// ParseNodes 解析 "id:host:port,id:host:port"
func ParseNodes(s string) ([]NodeData, error) {
	var nodes []NodeData
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("node %q: expected id:host:port", item)
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("node %q: bad id: %w", item, err)
		}
		port, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("node %q: bad port: %w", item, err)
		}
		nodes = append(nodes, NodeData{Id: id, Host: parts[1], Port: port})
	}
	return nodes, nil
}

func (c *Config) Validate() error {
	if c.ElectionTimeout <= 0 {
		return fmt.Errorf("election_timeout must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.NetworkHeartbeatInterval <= 0 {
		return fmt.Errorf("network_heartbeat_interval must be positive")
	}
	seen := make(map[int64]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if seen[n.Id] {
			return fmt.Errorf("duplicate node id: %d", n.Id)
		}
		seen[n.Id] = true
	}
	if !seen[c.Id] {
		return fmt.Errorf("node id %d is not in nodes", c.Id)
	}
	return nil
}

// Peers 返回除自己以外的节点
func (c *Config) Peers() []NodeData {
	peers := make([]NodeData, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Id != c.Id {
			peers = append(peers, n)
		}
	}
	return peers
}
