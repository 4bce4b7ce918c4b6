package state_machine_interface

// Apply 由上层状态机实现，raft 按提交顺序把命令交给它，每条命令只交一次
type Apply interface {
	// ApplyCommand 应用命令，返回值只用于日志
	ApplyCommand(command string) string
}
