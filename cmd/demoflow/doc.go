// Command demoflow runs the demo session daemon and inspects it.
//
// `demoflow serve` starts the HTTP API. The remaining commands either work
// offline (config, steps) or talk to a running daemon over its JSON API
// (status, sessions).
package main
