// Package fifo exchanges raw USBTMC traffic over a pair of named pipes.
//
// It lets host-side test software drive a relay device without USB
// hardware. A device instance creates a unique subdirectory under a
// shared bus directory:
//
//	/tmp/usbtmc-bus/
//	└── device-{uuid}/
//	    ├── host_to_device   # bulk-out packets and control requests
//	    └── device_to_host   # bulk-in packets, control responses, stalls
//
// Every message on either pipe is a frame:
//
//	type (1) | length (2, little-endian) | payload (length bytes)
//
// Bulk-out frames carry one USBTMC bulk-out packet (DEV_DEP_MSG_OUT,
// REQUEST_DEV_DEP_MSG_IN or TRIGGER, or a continuation packet). Bulk-in
// frames carry one DEV_DEP_MSG_IN packet. A bulk-in request that arrives
// before the response is ready is simply not answered until it is, the
// pipe equivalent of NAKing the IN token.
//
// # Usage
//
//	bus, _ := fifo.CreateBus("/tmp/usbtmc-bus")
//	defer bus.Close()
//	dev := fifo.NewDevice(engine, bus.Reader(), bus.Writer())
//	dev.Serve(ctx)
//
// and on the host side:
//
//	client, _ := fifo.Dial(deviceDir)
//	defer client.Close()
//	idn, _ := client.Query(ctx, "*IDN?")
package fifo
