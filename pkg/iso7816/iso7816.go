/*
Package iso7816 holds the APDU vocabulary shared by both ends of a contactless
exchange: the emulated card answering frames and the reader sending them.

# Fundamentals

The exchange is strictly synchronous:
 1. The reader sends a Command APDU (Header + Optional Body).
 2. The card returns a Response APDU (Optional Body + Trailer SW1/SW2).

An emulated card only needs three response trailers:
  - 0x9000: Success.
  - 0x6A82: File (or data) not found.
  - 0x6F00: No precise diagnosis. Used for every refusal.

# Card side

ParseCommandAPDU decodes an inbound frame into a CommandAPDU for reporting and
diagnostics. The hot dispatch path in package emulation matches raw prefixes
instead and never calls it.

# Reader side

Client wraps a Transmitter (a PC/SC card handle, or an in-process emulator)
and handles the T=0 "61XX" and "6CXX" retries, returning a Trace of every
atomic transaction.

	client := iso7816.NewClient(card)
	cls, _ := iso7816.NewClass(0x00)

	trace, err := client.Send(iso7816.ReadBinary(cls, 0x0010, 16))
	if err != nil {
	    log.Fatal(err)
	}
	if trace.IsSuccess() {
	    fmt.Printf("Block 1: %X\n", trace.Last().Response.Data)
	}
*/
package iso7816
