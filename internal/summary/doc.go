// Package summary derives per-step display summaries and sidebar badges from
// upstream pipeline results.
//
// Project is a pure function of its Inputs. Projector wraps it with a
// single-entry cache so that unchanged inputs yield the identical
// *Projection value.
package summary
