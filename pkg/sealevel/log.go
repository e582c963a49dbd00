package sealevel

import "k8s.io/klog/v2"

type Logger interface {
	Log(s string)
}

// LogRecorder collects the program log of one transaction.
type LogRecorder struct {
	Logs []string
}

func (r *LogRecorder) Log(s string) {
	klog.V(3).Info(s)
	r.Logs = append(r.Logs, s)
}

func (execCtx *ExecutionCtx) log(s string) {
	if execCtx.Log != nil {
		execCtx.Log.Log(s)
	}
}
