// Package delivery moves queued requests to their upstream targets.
//
// The Manager owns the flush lifecycle: a scheduler goroutine reacts to
// connectivity transitions, a periodic ticker, enqueue kicks, and manual
// flush calls; each pass fans pending classes out to a bounded set of
// workers. Within a class delivery is strictly oldest-first, and a head
// that keeps failing retryably blocks the class until it is delivered or
// its retry budget runs out. Removal happens only after a 2xx response,
// so a crash between reply and delete replays the request rather than
// losing it.
//
// Call offers the resilient façade: one live attempt whose HTTP response,
// whatever the status, settles the request; only transport failures fall
// back to the queue.
package delivery
