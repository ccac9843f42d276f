package proxy

import "github.com/incendiarybean/proxy-address-blocker/requestlog"

// CommandKind enumerates the messages the Coordinator consumes.
type CommandKind int

const (
	CmdStarting CommandKind = iota
	CmdRunning
	CmdTerminating
	CmdTerminated
	CmdError
	CmdLogRequest
)

// Command is the single message type sent over the command channel.
// Only the fields relevant to Kind are populated.
type Command struct {
	Kind    CommandKind
	Message string
	Record  requestlog.Record
}

func startingCommand() Command     { return Command{Kind: CmdStarting} }
func runningCommand() Command      { return Command{Kind: CmdRunning} }
func terminatingCommand() Command  { return Command{Kind: CmdTerminating} }
func terminatedCommand() Command   { return Command{Kind: CmdTerminated} }
func errorCommand(message string) Command {
	return Command{Kind: CmdError, Message: message}
}
func logRequestCommand(record requestlog.Record) Command {
	return Command{Kind: CmdLogRequest, Record: record}
}
