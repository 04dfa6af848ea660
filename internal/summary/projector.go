package summary

import (
	"reflect"
	"sort"
	"strconv"
	"sync"

	"demoflow/internal/steps"
)

// Field is one formatted label/value pair.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StepSummary is the derived display record for one step.
type StepSummary struct {
	Kind      steps.Kind `json:"-"`
	Slug      string     `json:"kind"`
	Fields    []Field    `json:"fields"`
	Finished  bool       `json:"finished"`
	Completed bool       `json:"completed"`
}

// Value returns the formatted value for label, or Missing.
func (s *StepSummary) Value(label string) string {
	if s == nil {
		return Missing
	}
	for _, f := range s.Fields {
		if f.Label == label {
			return f.Value
		}
	}
	return Missing
}

// Badge is the compact sidebar fragment list for a finished step.
type Badge []Field

// Projection holds summaries and badges aligned to flattened step order.
// Entries are nil where no summary applies.
type Projection struct {
	Summaries []*StepSummary `json:"summaries"`
	Badges    []Badge        `json:"badges"`
}

// Summary returns the entry at index or nil.
func (p *Projection) Summary(index int) *StepSummary {
	if p == nil || index < 0 || index >= len(p.Summaries) {
		return nil
	}
	return p.Summaries[index]
}

// Badge returns the badge at index or nil.
func (p *Projection) Badge(index int) Badge {
	if p == nil || index < 0 || index >= len(p.Badges) {
		return nil
	}
	return p.Badges[index]
}

type built struct {
	fields   []Field
	badge    []string
	finished bool
}

// Project computes the projection for catalog from in. It has no side effects.
func Project(catalog *steps.Catalog, in Inputs) *Projection {
	if catalog == nil {
		catalog = steps.Default()
	}
	total := catalog.Total()
	out := &Projection{
		Summaries: make([]*StepSummary, total),
		Badges:    make([]Badge, total),
	}
	for idx, def := range catalog.Flattened() {
		b, ok := build(def.Kind, in)
		if !ok {
			continue
		}
		summary := &StepSummary{
			Kind:      def.Kind,
			Slug:      def.Kind.Slug(),
			Fields:    b.fields,
			Finished:  b.finished,
			Completed: in.Completed[idx],
		}
		out.Summaries[idx] = summary
		if summary.Finished {
			out.Badges[idx] = badgeFor(summary, b.badge)
		}
	}
	return out
}

func badgeFor(s *StepSummary, labels []string) Badge {
	badge := make(Badge, 0, len(labels))
	for _, label := range labels {
		badge = append(badge, Field{Label: label, Value: s.Value(label)})
	}
	return badge
}

func build(kind steps.Kind, in Inputs) (built, bool) {
	switch kind {
	case steps.FileUpload:
		return buildUpload(in.Upload)
	case steps.EncodingFinished:
		return buildEncode(in.Encode)
	case steps.DecodingFinished:
		return buildDecode(in.Decode)
	case steps.ComparePSNR:
		return buildComparison(in.Comparison)
	case steps.ShowTimestamps:
		return buildSearch(in.Search)
	default:
		return built{}, false
	}
}

func buildUpload(u *Upload) (built, bool) {
	if u == nil {
		return built{}, false
	}
	name := u.Name
	if name == "" {
		name = Missing
	}
	return built{
		fields: []Field{
			{Label: "Name", Value: name},
			{Label: "Resolution", Value: FormatResolution(u.Width, u.Height)},
			{Label: "Size", Value: FormatBytes(u.Size)},
			{Label: "Duration", Value: FormatDuration(u.Duration)},
		},
		badge:    []string{"Resolution", "Size", "Duration"},
		finished: u.Finished,
	}, true
}

func buildEncode(e *Encode) (built, bool) {
	if e == nil {
		return built{}, false
	}
	saved := Missing
	if e.InputSize > 0 {
		saved = FormatPercent((1 - e.OutputSize/e.InputSize) * 100)
	}
	return built{
		fields: []Field{
			{Label: "Input Size", Value: FormatMegabytes(e.InputSize)},
			{Label: "Output Size", Value: FormatMegabytes(e.OutputSize)},
			{Label: "Compression", Value: FormatPercent(e.CompressionRatio)},
			{Label: "Saved", Value: saved},
			{Label: "PSNR", Value: FormatPSNR(e.PSNR)},
			{Label: "Duration", Value: FormatDuration(e.Duration)},
		},
		badge:    []string{"Compression", "PSNR"},
		finished: e.Finished,
	}, true
}

func buildDecode(d *Decode) (built, bool) {
	if d == nil {
		return built{}, false
	}
	frames := Missing
	if d.FrameCount > 0 {
		frames = strconv.Itoa(d.FrameCount)
	}
	return built{
		fields: []Field{
			{Label: "PSNR", Value: FormatPSNR(d.PSNR)},
			{Label: "Duration", Value: FormatDuration(d.Duration)},
			{Label: "Frames", Value: frames},
		},
		badge:    []string{"PSNR", "Frames"},
		finished: d.Finished,
	}, true
}

func buildComparison(metrics map[string]CodecMetric) (built, bool) {
	if len(metrics) == 0 {
		return built{}, false
	}
	codecs := make([]string, 0, len(metrics))
	for codec := range metrics {
		codecs = append(codecs, codec)
	}
	sort.Strings(codecs)

	best := ""
	finished := true
	for _, codec := range codecs {
		m := metrics[codec]
		if !statusDone(m.Status) {
			finished = false
		}
		if best == "" || m.PSNR > metrics[best].PSNR {
			best = codec
		}
	}
	return built{
		fields: []Field{
			{Label: "Best Codec", Value: CodecName(best)},
			{Label: "PSNR", Value: FormatPSNR(metrics[best].PSNR)},
			{Label: "Codecs", Value: strconv.Itoa(len(codecs))},
		},
		badge:    []string{"Best Codec", "PSNR"},
		finished: finished,
	}, true
}

func buildSearch(s *Search) (built, bool) {
	if s == nil {
		return built{}, false
	}
	matches := 0
	for _, r := range s.Results {
		matches += len(r.Matches)
	}
	return built{
		fields: []Field{
			{Label: "Queries", Value: strconv.Itoa(len(s.Results))},
			{Label: "Matches", Value: strconv.Itoa(matches)},
		},
		badge:    []string{"Matches"},
		finished: s.Finished,
	}, true
}

func statusDone(status string) bool {
	return status == "done" || status == "ok"
}

var codecNames = map[string]string{
	"ours": "Our Codec",
	"h264": "H.264",
	"h265": "H.265",
	"av1":  "AV1",
}

// CodecName returns the display name for a codec id.
func CodecName(codec string) string {
	if name, ok := codecNames[codec]; ok {
		return name
	}
	if codec == "" {
		return Missing
	}
	return codec
}

// Projector caches the most recent projection.
type Projector struct {
	catalog *steps.Catalog

	mu         sync.Mutex
	last       Inputs
	out        *Projection
	recomputes int
}

// NewProjector returns a projector bound to catalog.
func NewProjector(catalog *steps.Catalog) *Projector {
	if catalog == nil {
		catalog = steps.Default()
	}
	return &Projector{catalog: catalog}
}

// Project returns the projection for in, reusing the previous value when the
// inputs are unchanged.
func (p *Projector) Project(in Inputs) *Projection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil && reflect.DeepEqual(p.last, in) {
		return p.out
	}
	p.last = in.clone()
	p.out = Project(p.catalog, in)
	p.recomputes++
	return p.out
}

// Current returns the last computed projection, computing an empty one if
// nothing has been projected yet.
func (p *Projector) Current() *Projection {
	p.mu.Lock()
	out := p.out
	p.mu.Unlock()
	if out != nil {
		return out
	}
	return p.Project(Inputs{})
}

// Recomputes reports how many times the projection was actually rebuilt.
func (p *Projector) Recomputes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recomputes
}
