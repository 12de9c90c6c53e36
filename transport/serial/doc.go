// Package serial bridges a line-oriented byte stream, typically a serial
// port, to a [usbtmc.Engine].
//
// Each input line is one complete command message. When the command
// starts a response cycle the bridge issues a bulk-in request on the
// host's behalf, and the response is written back once the engine makes
// it available. A response that does not end in a newline gets one, so
// every reply is a line.
//
// Lines beginning with '!' are bridge escapes standing in for USBTMC
// class requests that have no in-band form:
//
//	!clr  device clear (INITIATE_CLEAR)
//	!stb  read status byte; replies with the decimal value
//	!trg  USB488 trigger
package serial
