//go:build darwin

package eventcatcher

import (
	"github.com/prashantgupta24/mac-sleep-notifier/notifier"
)

// sleeper signals listen when the machine wakes up, the relay connection is
// stale by then.
func sleeper(listen chan bool) {
	activities := notifier.GetInstance().Start()
	go func() {
		for activity := range activities {
			if activity.Type != notifier.Awake {
				continue
			}
			select {
			case listen <- true:
			default:
			}
		}
	}()
}
