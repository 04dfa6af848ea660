// Package clock abstracts wall time and timers so the session state machines
// can be driven deterministically.
//
// Production code uses [Real]. Tests use [Fake], whose Advance method fires
// due timers synchronously in deadline order. Every timer handed out by a
// Clock can be stopped; components keep the handle and stop it when their
// owning scope ends.
package clock
