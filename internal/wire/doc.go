// Package wire implements the framed text protocol spoken between the
// coordinator, the disks, and the user driver.
//
// Every request and response is a UTF-8 text payload framed by a 4-byte
// big-endian length prefix. A request payload is a command token followed by
// space-separated positional arguments; a response payload is a status token
// (SUCCESS, FAILURE, FAIL, FAIL-COMPLETE) optionally followed by
// space-separated result fields.
//
// Binary block payloads are not framed: they ride as raw bytes immediately
// after the control frame that announces them (a store-block request, or a
// successful read-block response), with their length carried in that frame's
// size field.
//
// The package also defines the closed command catalogs for the coordinator
// and the disk command server, together with the expected argument count for
// each command, so malformed requests are rejected before dispatch.
package wire
