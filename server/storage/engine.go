package storage

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// StorageEngineInterface 是raft状态机之上的键值存储
type StorageEngineInterface interface {
	ApplyCommand(command string) string
	Get(key string) (string, bool)
	Prefix(prefix string) []string
	Suffix(suffix string) []string
	Contains(sub string) []string
}

// MapEngine 把已提交的命令应用到 Gomap 上，命令格式为 "SET key value" 和 "DEL key"
type MapEngine struct {
	mu sync.RWMutex
	m  *Gomap
}

func NewMapEngine(initCap int) *MapEngine {
	return &MapEngine{m: NewGomap(initCap)}
}

func SetCommand(key, value string) string {
	return "SET " + key + " " + value
}

func DelCommand(key string) string {
	return "DEL " + key
}

func (e *MapEngine) ApplyCommand(command string) string {
	fields := strings.SplitN(strings.TrimSpace(command), " ", 3)
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case len(fields) == 3 && strings.EqualFold(fields[0], "SET"):
		e.m.Put(fields[1], fields[2])
		return fields[2]
	case len(fields) == 2 && strings.EqualFold(fields[0], "DEL"):
		e.m.Del(fields[1])
		return ""
	default:
		log.Warnf("无法识别的命令: %q", command)
		return ""
	}
}

func (e *MapEngine) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.m.Get(key)
}

func (e *MapEngine) Prefix(prefix string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.m.Prefix(prefix)
}

func (e *MapEngine) Suffix(suffix string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.m.Suffix(suffix)
}

func (e *MapEngine) Contains(sub string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.m.Contains(sub)
}
