// Package progress owns the workflow position for a session: the current
// step index and the set of completed step indices.
//
// Navigation (GoTo, Next, Previous) never checks gating itself; callers that
// act on behalf of a user consult CanReach first. Forward navigation is
// reachable only once the current step is completed. ResetGroup rewinds to
// the first step of a group and clears completion for the rest of that
// group while leaving the group's first step and every other group alone.
//
// The Store is the only writer of workflow state. ForceCurrent exists for the
// auto-advance watcher, which moves the session without user input.
package progress
