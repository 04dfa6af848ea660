package summary

// Upload is the file upload result. Zero numeric fields mean the metadata has
// not been probed yet.
type Upload struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Finished bool    `json:"finished"`
}

// Encode is the encode result. Sizes are megabytes.
type Encode struct {
	InputSize        float64 `json:"inputSize"`
	OutputSize       float64 `json:"outputSize"`
	Duration         float64 `json:"duration"`
	CompressionRatio float64 `json:"compressionRatio"`
	PSNR             float64 `json:"psnr"`
	Finished         bool    `json:"finished"`
}

// Decode is the decode result.
type Decode struct {
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frameCount"`
	PSNR       float64 `json:"psnr"`
	Finished   bool    `json:"finished"`
}

// DecodeProgress is the decode telemetry sample.
type DecodeProgress struct {
	State        string  `json:"state"`
	Progress     float64 `json:"progress"`
	ETA          string  `json:"eta"`
	CurrentFrame int     `json:"currentFrame,omitempty"`
	TotalFrames  int     `json:"totalFrames,omitempty"`
}

// CodecMetric is one codec's comparison result.
type CodecMetric struct {
	PSNR             float64 `json:"psnr"`
	VideoURL         string  `json:"videoUrl"`
	FileSize         int64   `json:"fileSize"`
	CompressionRatio float64 `json:"compressionRatio"`
	Status           string  `json:"status"`
}

// Match is a ranked candidate for one query image.
type Match struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Timestamp  float64 `json:"timestamp"`
}

// SearchResult holds the matches for one query image.
type SearchResult struct {
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
}

// Search is the screenshot search outcome.
type Search struct {
	Results  []SearchResult `json:"results"`
	Finished bool           `json:"finished"`
}

// Inputs is everything a projection depends on. Nil pointers mean the
// corresponding subsystem has produced nothing yet.
type Inputs struct {
	Upload     *Upload
	Encode     *Encode
	Decode     *Decode
	Comparison map[string]CodecMetric
	Search     *Search
	Completed  map[int]bool
}

func (in Inputs) clone() Inputs {
	out := Inputs{}
	if in.Upload != nil {
		u := *in.Upload
		out.Upload = &u
	}
	if in.Encode != nil {
		e := *in.Encode
		out.Encode = &e
	}
	if in.Decode != nil {
		d := *in.Decode
		out.Decode = &d
	}
	if in.Comparison != nil {
		out.Comparison = make(map[string]CodecMetric, len(in.Comparison))
		for k, v := range in.Comparison {
			out.Comparison[k] = v
		}
	}
	if in.Search != nil {
		s := Search{Finished: in.Search.Finished}
		for _, r := range in.Search.Results {
			s.Results = append(s.Results, SearchResult{
				Query:   r.Query,
				Matches: append([]Match(nil), r.Matches...),
			})
		}
		out.Search = &s
	}
	if in.Completed != nil {
		out.Completed = make(map[int]bool, len(in.Completed))
		for k, v := range in.Completed {
			out.Completed[k] = v
		}
	}
	return out
}
