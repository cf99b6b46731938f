package actors

import (
	"sync"

	"github.com/sasha-s/go-deadlock"
	"keyholder/engine/library"
)

var terminateChan = make(chan struct{})
var waitGroup = &deadlock.WaitGroup{}
var terminate sync.Once

// GetTerminateChan is closed when the engine starts shutting down.
func GetTerminateChan() chan struct{} {
	return terminateChan
}

// GetWaitGroup is what long running goroutines add themselves to so that
// Shutdown can wait for them.
func GetWaitGroup() *deadlock.WaitGroup {
	return waitGroup
}

// Shutdown closes the terminate channel once and waits for everything on the
// wait group to finish.
func Shutdown() {
	terminate.Do(func() {
		LogCLI("shutting down", 4)
		close(terminateChan)
	})
	waitGroup.Wait()
}

func LogCLI(message interface{}, level int) {
	library.LogCLI(message, level)
}
