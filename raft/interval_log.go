package raft

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// IntervalRecorder 记录每一次超时/心跳间隔的调整，只用于事后分析
type IntervalRecorder interface {
	Record(nodeID int64, interval time.Duration) error
}

const intervalTimeLayout = "2006-01-02 15:04:05 MST"

// intervalFormatter 输出固定格式的一行，供离线脚本解析
type intervalFormatter struct{}

func (intervalFormatter) Format(e *log.Entry) ([]byte, error) {
	return fmt.Appendf(nil, "[%s] Interval update for Node: %v → %v\n",
		e.Time.Format(intervalTimeLayout), e.Data["node"], e.Data["interval"]), nil
}

// FileIntervalRecorder 把间隔调整追加写入 dir/node_<id>.log
type FileIntervalRecorder struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewFileIntervalRecorder(dir string) *FileIntervalRecorder {
	return &FileIntervalRecorder{dir: dir, now: time.Now}
}

func (r *FileIntervalRecorder) Path(nodeID int64) string {
	return filepath.Join(r.dir, fmt.Sprintf("node_%d.log", nodeID))
}

func (r *FileIntervalRecorder) Record(nodeID int64, interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create interval log dir: %w", err)
	}
	f, err := os.OpenFile(r.Path(nodeID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open interval log: %w", err)
	}
	defer f.Close()

	logger := log.New()
	logger.SetOutput(f)
	logger.SetFormatter(intervalFormatter{})
	logger.WithTime(r.now()).
		WithField("node", nodeID).
		WithField("interval", interval.Milliseconds()).
		Info("interval update")
	return nil
}
