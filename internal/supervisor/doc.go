// Package supervisor provides lifecycle management for the Open WebUI
// service subprocess.
//
// A Supervisor owns exactly one child process at a time and tracks it
// through a small state machine (stopped, starting, running, stopping,
// error). Start spawns the child and returns immediately; two background
// workers then take over:
//
//   - the output reader drains the child's merged stdout/stderr into a
//     bounded buffer, mirrors each line to a log file, and fans it out to
//     subscribers
//   - the health waiter polls the service's HTTP endpoint and drives the
//     starting -> running transition, or starting -> error if the child
//     dies or the health budget runs out
//
// Stop escalates from SIGTERM to SIGKILL on timeout. All failures end in
// the error state, from which a fresh Start or Restart is always possible.
//
// Example usage:
//
//	sup := supervisor.New(supervisor.Options{
//	    Host: "127.0.0.1",
//	    Port: 8080,
//	}, logging.GetLogger("supervisor"))
//	sup.SubscribeState(func(old, new supervisor.State) {
//	    log.Printf("service: %s -> %s", old, new)
//	})
//	sup.Start()
//	defer sup.Stop(0)
package supervisor
