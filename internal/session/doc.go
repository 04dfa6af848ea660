// Package session owns one demo walkthrough: the workflow store, summary
// projector, auto-advance watcher, stream readiness tracker, transport
// controller and metric poller, wired together so that each event flows to
// the components that depend on it.
//
// Sessions are created through a Registry, which assigns uuid identifiers
// and closes every session on shutdown. All timers a session owns are
// cancelled by Close.
package session
