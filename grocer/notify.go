package grocer

import (
	"sync"
	"time"
)


// generic user-facing messages
const (
	AlertErrorOccurred = "An error occurred"
	AlertFailedToEmpty = "An error occurred. Failed to empty"
	AlertFailedToRemove = "An error occurred. Failed to remove item"
	AlertRateSent = "Rate sent"
)


// the surface that shows messages to the user
type Notifier interface {
	Alert(message string)
}


type Alert struct {
	Message string `json:"message"`
	Time time.Time `json:"time"`
}


// writes alerts to the log
// used when there is no view attached, e.g. from the cli
type LogNotifier struct {
	log LogFunction
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{
		log: LogFn(LogLevelInfo, "alert"),
	}
}

func (self *LogNotifier) Alert(message string) {
	self.log("%s", message)
}


// keeps the most recent alerts in memory
type AlertHistory struct {
	limit int

	stateLock sync.Mutex
	alerts []*Alert
}

func NewAlertHistory(limit int) *AlertHistory {
	if limit < 1 {
		limit = 1
	}
	return &AlertHistory{
		limit: limit,
	}
}

func (self *AlertHistory) Alert(message string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.alerts = append(self.alerts, &Alert{
		Message: message,
		Time: time.Now(),
	})
	if self.limit < len(self.alerts) {
		self.alerts = append([]*Alert(nil), self.alerts[len(self.alerts) - self.limit:]...)
	}
}

func (self *AlertHistory) Alerts() []*Alert {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	alerts := make([]*Alert, len(self.alerts))
	copy(alerts, self.alerts)
	return alerts
}

func (self *AlertHistory) Messages() []string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	messages := make([]string, 0, len(self.alerts))
	for _, alert := range self.alerts {
		messages = append(messages, alert.Message)
	}
	return messages
}
