// Package preflight provides readiness checks for the filesystem paths and
// the processing backend that demoflow depends on.
//
// These checks run in two contexts:
//   - `demoflow serve` calls RunAll at startup and logs every failure as a
//     warning. A failed check never blocks the daemon; sessions still work
//     with upstream results posted by other clients.
//   - The CLI `demoflow check` command prints each result.
package preflight
