package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GoRecoverable runs f, logging and restarting it after a panic. A
// negative maxPanics restarts forever, zero exits the process on the
// first panic.
func GoRecoverable(maxPanics int, id string, f func()) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		log.WithField("task", id).Errorf("panic: %s at %s", err, identifyPanic())
		if maxPanics == 0 {
			log.WithField("task", id).Fatal("panic limit exceeded, exiting")
		}
		if maxPanics > 0 {
			maxPanics--
		}
		log.WithField("task", id).WithField("panics_left", maxPanics).Debug("restarting task")
		go GoRecoverable(maxPanics, id, f)
	}()
	f()
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
