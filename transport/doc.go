// Package transport carries USBTMC traffic between a host and a
// [usbtmc.Engine].
//
// The engine is single-threaded. Each transport runs one reader goroutine
// that decodes input into events and hands them to [Pump], which owns the
// engine: it applies events and advances the response simulation on a
// ticker, all from one goroutine.
//
// Two transports are provided:
//
//   - [github.com/ardnew/relaytmc/transport/serial] accepts
//     newline-delimited commands on a serial port or any byte stream.
//   - [github.com/ardnew/relaytmc/transport/fifo] exchanges raw USBTMC
//     bulk packets and class control requests over a pair of named pipes,
//     so host software can drive the device without USB hardware.
package transport
