//go:build !windows

package app

import (
	"os"
	"os/signal"
	"syscall"
)

func notifyRotate(ch chan<- os.Signal) bool {
	signal.Notify(ch, syscall.SIGUSR1)
	return true
}
