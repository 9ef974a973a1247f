// Package dispatch decides, per write, whether a command goes to the board
// now or waits in the bounded queue.
//
// A Dispatcher composes three pieces:
//   - the rate gate, which remembers the last successful write;
//   - the bounded queue and its self-rearming send loop;
//   - the Device, the transport that performs the write.
//
// Write rules:
//   - Gate open: the command is written immediately and Write returns the
//     device result.
//   - Gate closed: the command is queued and Write returns true, meaning
//     accepted, not displayed.
//   - Only successful writes advance the gate. Failed writes are logged and
//     never retried.
//   - Every device call is bounded by the configured write timeout; a
//     timeout counts as a failure.
//
// Shutdown drains the queue. Discarded commands are logged at warn level.
package dispatch
