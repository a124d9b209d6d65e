// ABOUTME: SIGUSR1 toggles freewheel on the sender engine
// ABOUTME: Lets the suspend and resume path be exercised from the shell

//go:build unix

package main

import (
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/Sendspin/sendspin-bridge/internal/engine"
)

func handleFreewheel(eng *engine.Clock) func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGUSR1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sig:
				on := !eng.Freewheeling()
				logrus.Printf("Freewheel %v", on)
				eng.SetFreewheel(on)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}
