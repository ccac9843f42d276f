package proxy

import "time"

// runCoordinator is the single long-lived consumer of commands.
// It is the sole writer of the status cell, the run-time cell, and the
// RequestLog, which is what lets every other goroutine treat those
// three as plain snapshot reads requiring only a cheap guard.
//
// The function returns (and signals proxy.wait) only after observing
// CmdTerminated or a closed command channel.
func runCoordinator(proxy *Proxy, commands chan Command) {
	defer proxy.wait.Done()

	for {
		command, open := <-commands
		if !open {
			proxy.setStatus(errorStatus("command channel closed unexpectedly"))
			return
		}

		current := proxy.Status().Kind

		switch command.Kind {
		case CmdStarting:
			if current == Stopped || current == Error {
				proxy.setStatus(Status{Kind: Starting})
			}

		case CmdRunning:
			if current == Starting {
				proxy.setRunTimeStarted(time.Now())
				proxy.setStatus(Status{Kind: Running})
			}

		case CmdTerminating:
			if current == Starting || current == Running {
				proxy.setStatus(Status{Kind: Terminating})
			}

		case CmdTerminated:
			proxy.logger.Global("service has been stopped.")
			proxy.clearRunTimeStarted()
			proxy.setSender(nil)
			proxy.setStatus(StoppedStatus)
			return

		case CmdError:
			proxy.setStatus(errorStatus(command.Message))

		case CmdLogRequest:
			if current == Running {
				proxy.log.Append(command.Record)
				proxy.events.Publish(Event{Kind: EventRequestLogged, Request: command.Record})
			}

		default:
			// Unrecognised command: status is left unchanged, per the
			// "any -> (unexpected) -> unchanged" row of the transition
			// table.
		}
	}
}
