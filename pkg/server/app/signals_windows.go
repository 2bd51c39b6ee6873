//go:build windows

package app

import "os"

func notifyRotate(chan<- os.Signal) bool { return false }
