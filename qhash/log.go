package qhash

import (
	"log"
	"os"
	"sync"
)

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "qhash: ", log.LstdFlags)
}

// warner writes WARN lines, optionally only once per key.
type warner struct {
	l    *log.Logger
	once sync.Map
}

func newWarner(l *log.Logger) *warner {
	if l == nil {
		l = defaultLogger()
	}
	return &warner{l: l}
}

func (w *warner) warnf(format string, a ...any) {
	w.l.Printf("WARN: "+format, a...)
}

// warnOnce logs only the first warning for key.
func (w *warner) warnOnce(key, format string, a ...any) {
	if _, seen := w.once.LoadOrStore(key, struct{}{}); seen {
		return
	}
	w.warnf(format, a...)
}

func (w *warner) infof(format string, a ...any) {
	w.l.Printf(format, a...)
}
