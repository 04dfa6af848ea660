package api

import (
	"slices"

	"demoflow/internal/playback"
	"demoflow/internal/progress"
	"demoflow/internal/steps"
	"demoflow/internal/summary"
)

// ViewParts is everything needed to assemble a SessionView.
type ViewParts struct {
	ID         string
	Catalog    *steps.Catalog
	Progress   progress.Snapshot
	CanReach   func(index int) bool
	Projection *summary.Projection
	Transport  playback.TransportState
	Streams    map[playback.StreamID]playback.StreamState
	Handles    map[playback.StreamID]playback.HandleState
	Scores     map[playback.StreamID]float64
	Decode     *summary.DecodeProgress
}

// BuildSessionView assembles the view from component snapshots.
func BuildSessionView(parts ViewParts) SessionView {
	catalog := parts.Catalog
	if catalog == nil {
		catalog = steps.Default()
	}
	view := SessionView{
		ID:       parts.ID,
		Workflow: FromSnapshot(parts.Progress),
		Groups:   buildGroups(catalog, parts),
		Playback: PlaybackView{
			Transport: parts.Transport,
			Streams:   buildStreams(parts),
		},
	}
	if parts.Decode != nil {
		d := *parts.Decode
		view.Decode = &d
	}
	return view
}

// FromSnapshot converts a progress snapshot.
func FromSnapshot(snap progress.Snapshot) WorkflowView {
	return WorkflowView{
		Current:      snap.Current,
		Total:        snap.Total,
		CurrentGroup: snap.CurrentGroupIndex,
		CurrentLabel: snap.CurrentLabel,
		Completed:    nonNil(snap.Completed),
		Visited:      nonNil(snap.Visited),
		IsFirst:      snap.IsFirst,
		IsLast:       snap.IsLast,
	}
}

func buildGroups(catalog *steps.Catalog, parts ViewParts) []GroupView {
	snap := parts.Progress
	groups := catalog.Groups()
	starts := catalog.GroupStarts()
	out := make([]GroupView, 0, len(groups))
	for g, group := range groups {
		gv := GroupView{Index: g, Label: group.Label, Start: starts[g]}
		for i, def := range group.Steps {
			idx := starts[g] + i
			sv := StepView{
				Index:     idx,
				Kind:      def.Kind.Slug(),
				Label:     def.Label,
				Current:   idx == snap.Current,
				Completed: slices.Contains(snap.Completed, idx),
				Visited:   slices.Contains(snap.Visited, idx),
				Reachable: true,
				Summary:   parts.Projection.Summary(idx),
			}
			if parts.CanReach != nil {
				sv.Reachable = parts.CanReach(idx)
			}
			if badge := parts.Projection.Badge(idx); badge != nil {
				sv.Badge = []summary.Field(badge)
			}
			gv.Steps = append(gv.Steps, sv)
		}
		out = append(out, gv)
	}
	return out
}

func buildStreams(parts ViewParts) []StreamView {
	ids := playback.StreamIDs()
	out := make([]StreamView, 0, len(ids))
	for _, id := range ids {
		out = append(out, StreamView{
			ID:          string(id),
			Codec:       id.Codec(),
			Name:        id.DisplayName(),
			Score:       parts.Scores[id],
			StreamState: parts.Streams[id],
			Handle:      parts.Handles[id],
		})
	}
	return out
}

func nonNil(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}

// Step returns the step view at flattened index, if present.
func (v SessionView) Step(index int) (StepView, bool) {
	for _, g := range v.Groups {
		for _, s := range g.Steps {
			if s.Index == index {
				return s, true
			}
		}
	}
	return StepView{}, false
}
