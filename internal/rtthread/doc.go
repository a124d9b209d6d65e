// ABOUTME: Real-time worker thread package
// ABOUTME: Thread start-up with priority setup and a post/wait semaphore
// Package rtthread runs the bridge's network workers.
//
// Start takes the worker body as a function so every subsystem shares the
// same OS-thread locking and priority setup. Sema lets the audio callback
// wake a sleeping worker without blocking.
//
// Example:
//
//	sema := rtthread.NewSema()
//	th := rtthread.Start("nettx", prio+5, func() {
//	    for {
//	        sema.Wait()
//	        if stop.Load() {
//	            return
//	        }
//	        send()
//	    }
//	})
//	stop.Store(true)
//	sema.Post()
//	th.Wait()
package rtthread
