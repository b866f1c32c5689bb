// Package cmdqueue correlates outgoing commands with incoming bytes on an
// unframed byte stream.
//
// A Processor holds a FIFO of pending commands and an accumulation buffer.
// Exactly one command is active at a time: it is transmitted, then its parser
// is run against the whole buffer every time new bytes are fed in, until the
// parser accepts, fails, or the command's timeout elapses. Only then is the
// next command transmitted. Commands are never pipelined because the device
// protocol gives no way to tag a response with the command that caused it.
//
// Parsers return an Outcome instead of raising errors for ordinary control flow:
//
//	func parseLine(buf []byte) cmdqueue.Outcome {
//	    i := bytes.IndexByte(buf, '\n')
//	    if i < 0 {
//	        return cmdqueue.NeedMore()
//	    }
//	    return cmdqueue.Accept(string(buf[:i]))
//	}
//
// NeedMore never reaches the caller; a command that keeps needing more data
// is rejected with a *TimeoutError once its wall-clock budget is spent.
package cmdqueue
