package grocer

import (
	"fmt"
	"log"
	"os"
)


// Logging convention in the `grocer` package:
// Info:
//     events the user should have seen, e.g. alerts, and one time lifecycle events
//     this level is silent while every action succeeds
// Warning:
//     recovered panics and persistence failures
// Debug (glog V(1), V(2)):
//     per action outcomes, dropped stale responses, and per request lines
//     with request ids that can be used to filter


// `LogFn` messages at or below `GlobalLogLevel` are written
const LogLevelInfo = 50


var GlobalLogLevel = LogLevelInfo


var logger = log.New(os.Stderr, "", log.Ldate | log.Ltime | log.Lshortfile)

func Logger() *log.Logger {
	return logger
}


func LogFn(level int, tag string) LogFunction {
	return func(format string, a ...any) {
		if level <= GlobalLogLevel {
			m := fmt.Sprintf(format, a...)
			Logger().Printf("%s: %s\n", tag, m)
		}
	}
}

type LogFunction func(string, ...any)
