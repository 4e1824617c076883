//go:build linux

package chrometrace

import "golang.org/x/sys/unix"

func osThreadID() ThreadID {
	return ThreadID(unix.Gettid())
}
