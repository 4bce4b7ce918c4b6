package global

// 客户端接口返回的状态
const (
	Success = "success" // 成功
	Failed  = "failed"  // 失败
	Forward = "forward" // 转发到leader
)

// Response 是所有客户端接口统一的返回体
type Response struct {
	Status    string   `json:"status"`
	RequestId string   `json:"requestId,omitempty"`
	Leader    string   `json:"leader,omitempty"` // Forward 时为leader地址
	Value     string   `json:"value,omitempty"`
	Keys      []string `json:"keys,omitempty"`
	Error     string   `json:"error,omitempty"`
}
