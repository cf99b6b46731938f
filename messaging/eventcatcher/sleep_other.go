//go:build !darwin

package eventcatcher

// sleeper only detects system sleep on darwin.
func sleeper(listen chan bool) {}
