// Package clock provides an injectable time source so the delivery
// scheduler, connectivity monitor, and cache sweeper can be tested
// without real sleeps.
//
// Production wiring passes System(); tests construct a Fake and step it
// with Advance.
package clock
