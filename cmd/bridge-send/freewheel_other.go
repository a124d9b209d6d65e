// ABOUTME: Freewheel toggle stub for platforms without SIGUSR1
// ABOUTME: The engine simply never freewheels there

//go:build !unix

package main

import "github.com/Sendspin/sendspin-bridge/internal/engine"

func handleFreewheel(eng *engine.Clock) func() { return func() {} }
