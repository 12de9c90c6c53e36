// Package relay provides output backends for the usbtmc engine.
//
// Every backend maps the engine's logical "enabled" state onto an
// electrical level through a fixed polarity: with ActiveHigh false (the
// 8-channel board) a relay is energized by driving its pin low.
//
//   - [Memory] keeps channel levels in memory, with an auxiliary analog
//     value standing in for the board's DAC
//   - [GPIO] drives periph.io GPIO pins
//   - [Modbus] drives the coils of a Modbus relay module
//
// All backends are safe for concurrent use.
package relay
