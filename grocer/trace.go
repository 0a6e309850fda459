package grocer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/golang/glog"
)


func IsDoneError(r any) bool {
	switch v := r.(type) {
	case error:
		return errors.Is(v, context.Canceled) || errors.Is(v, context.DeadlineExceeded)
	default:
		return false
	}
}

// runs `do` and returns what it panicked with, or nil
// the panic is passed to each handler, which is a `func()` or a `func(error)`.
// a canceled or expired context is the normal way an action is abandoned,
// so those panics reach the handlers without a warning
func HandleError(do func(), handlers ...any) (recovered any) {
	defer func() {
		recovered = recover()
		if recovered == nil {
			return
		}
		if !IsDoneError(recovered) {
			glog.Warningf("[trace]recovered = %s\n", ErrorJson(recovered, debug.Stack()))
		}
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("%v", recovered)
		}
		for _, handler := range handlers {
			if handle, ok := handler.(func(error)); ok {
				handle(err)
			} else if handle, ok := handler.(func()); ok {
				handle()
			}
		}
	}()
	do()
	return nil
}

// one line of json with the panic value and its trimmed stack frames
func ErrorJson(value any, stack []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stack)), "\n")
	frames := make([]string, 0, len(lines))
	for _, line := range lines {
		frames = append(frames, strings.TrimSpace(line))
	}
	out, _ := json.Marshal(struct {
		Error string `json:"error"`
		Stack []string `json:"stack"`
	}{
		Error: fmt.Sprintf("%T=%v", value, value),
		Stack: frames,
	})
	return string(out)
}


func Trace(tag string, do func()) {
	trace(tag, func() string {
		do()
		return ""
	})
}

func trace(tag string, do func() string) {
	if !glog.V(2) {
		do()
		return
	}
	start := time.Now()
	glog.Infof("[%-8s]%s (%d)\n", "start", tag, start.UnixMilli())
	doTag := do()
	end := time.Now()
	millis := float32(end.Sub(start)) / float32(time.Millisecond)
	glog.Infof("[%-8s]%s (%.2fms) (%d)%s\n", "end", tag, millis, end.UnixMilli(), doTag)
}
