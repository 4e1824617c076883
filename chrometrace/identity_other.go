//go:build !linux

package chrometrace

import "os"

// Only Linux exposes a cheap per-thread id; elsewhere every untagged
// callback lands on a single row named after the process.
func osThreadID() ThreadID {
	return ThreadID(os.Getpid())
}
