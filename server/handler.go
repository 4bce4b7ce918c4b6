package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go_raft_adaptive/raft"
	"go_raft_adaptive/raft/common"
	"go_raft_adaptive/server/components/httptool"
	"go_raft_adaptive/server/global"
	"go_raft_adaptive/server/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Node 是 HTTP 层需要的 raft 节点能力，由 *raft.Raft 实现
type Node interface {
	ApplyCommand(ctx context.Context, command string) (bool, error)
	IsLeader() bool
	LeaderAddr() string
	Status() common.State
	GetNodeInfos() []raft.NodeInfo
}

type KvReq struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type StatusResp struct {
	common.State
	Peers []raft.NodeInfo `json:"peers"`
}

type Handler struct {
	node    Node
	storage storage.StorageEngineInterface
	timeout time.Duration
}

func NewHandler(node Node, engine storage.StorageEngineInterface, timeout time.Duration) *Handler {
	return &Handler{node: node, storage: engine, timeout: timeout}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /command", h.handleCommand)
	mux.HandleFunc("PUT /kv", h.handlePut)
	mux.HandleFunc("DELETE /kv", h.handleDelete)
	mux.HandleFunc("GET /kv", h.handleGet)
	mux.HandleFunc("GET /keys", h.handleKeys)
	mux.HandleFunc("GET /status", h.handleStatus)
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	command, err := httptool.StringBody(r)
	if err != nil || command == "" {
		httptool.WriteJson(w, http.StatusBadRequest, global.Response{Status: global.Failed, Error: "empty command"})
		return
	}
	h.submit(w, r, command)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	req, err := httptool.JsonBody[KvReq](r)
	if err != nil || req.Key == "" || strings.ContainsAny(req.Key, " \n") {
		httptool.WriteJson(w, http.StatusBadRequest, global.Response{Status: global.Failed, Error: "invalid key"})
		return
	}
	h.submit(w, r, storage.SetCommand(req.Key, req.Value))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		httptool.WriteJson(w, http.StatusBadRequest, global.Response{Status: global.Failed, Error: "missing key"})
		return
	}
	h.submit(w, r, storage.DelCommand(key))
}

// submit 把命令交给raft并等待提交，非leader时告诉客户端leader地址
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, command string) {
	requestId := uuid.NewString()
	entry := log.WithField("requestId", requestId)

	if !h.node.IsLeader() {
		entry.Debugf("不是leader节点，转发到 %s", h.node.LeaderAddr())
		h.forward(w, requestId)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	ok, err := h.node.ApplyCommand(ctx, command)
	switch {
	case errors.Is(err, raft.ErrNotLeader):
		h.forward(w, requestId)
	case err != nil || !ok:
		entry.Warnf("命令 %q 提交失败: %v", command, err)
		resp := global.Response{Status: global.Failed, RequestId: requestId}
		if err != nil {
			resp.Error = err.Error()
		}
		httptool.WriteJson(w, http.StatusServiceUnavailable, resp)
	default:
		entry.Debugf("命令 %q 已提交", command)
		httptool.WriteJson(w, http.StatusOK, global.Response{Status: global.Success, RequestId: requestId})
	}
}

// forward 告诉客户端去找leader。Leader 是leader的raft地址，不是可以直接跟随的http地址，
// 所以用 421 而不是重定向
func (h *Handler) forward(w http.ResponseWriter, requestId string) {
	httptool.WriteJson(w, http.StatusMisdirectedRequest, global.Response{
		Status:    global.Forward,
		RequestId: requestId,
		Leader:    h.node.LeaderAddr(),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	value, ok := h.storage.Get(key)
	if !ok {
		httptool.WriteJson(w, http.StatusNotFound, global.Response{Status: global.Failed, Error: "key not found"})
		return
	}
	httptool.WriteJson(w, http.StatusOK, global.Response{Status: global.Success, Value: value})
}

func (h *Handler) handleKeys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var keys []string
	switch {
	case q.Has("prefix"):
		keys = h.storage.Prefix(q.Get("prefix"))
	case q.Has("suffix"):
		keys = h.storage.Suffix(q.Get("suffix"))
	case q.Has("contains"):
		keys = h.storage.Contains(q.Get("contains"))
	default:
		keys = h.storage.Prefix("")
	}
	httptool.WriteJson(w, http.StatusOK, global.Response{Status: global.Success, Keys: keys})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	httptool.WriteJson(w, http.StatusOK, StatusResp{State: h.node.Status(), Peers: h.node.GetNodeInfos()})
}
