package steps

// Kind identifies a single workflow stage.
type Kind int

const (
	FileUpload Kind = iota
	EncodingStarted
	EncodingFinished
	DecodingStarted
	DecodedVideo
	DecodingFinished
	ComparePSNR
	UploadScreenshots
	ProcessImages
	ShowTimestamps

	kindCount
)

var kindLabels = [kindCount]string{
	FileUpload:        "File Upload",
	EncodingStarted:   "Encoding Started",
	EncodingFinished:  "Encoding Finished",
	DecodingStarted:   "Decoding Started",
	DecodedVideo:      "Decoded Video",
	DecodingFinished:  "Decoding Finished",
	ComparePSNR:       "Compare PSNR",
	UploadScreenshots: "Upload Screenshots",
	ProcessImages:     "Process Images",
	ShowTimestamps:    "Show Timestamps",
}

var kindSlugs = [kindCount]string{
	FileUpload:        "file-upload",
	EncodingStarted:   "encoding-started",
	EncodingFinished:  "encoding-finished",
	DecodingStarted:   "decoding-started",
	DecodedVideo:      "decoded-video",
	DecodingFinished:  "decoding-finished",
	ComparePSNR:       "compare-psnr",
	UploadScreenshots: "upload-screenshots",
	ProcessImages:     "process-images",
	ShowTimestamps:    "show-timestamps",
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && k < kindCount
}

// String returns the display label.
func (k Kind) String() string {
	if !k.Valid() {
		return "Unknown"
	}
	return kindLabels[k]
}

// Slug returns the stable machine identifier used on the wire.
func (k Kind) Slug() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindSlugs[k]
}

// Kinds returns every declared kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind resolves a slug back to its Kind.
func ParseKind(slug string) (Kind, bool) {
	for k := Kind(0); k < kindCount; k++ {
		if kindSlugs[k] == slug {
			return k, true
		}
	}
	return 0, false
}
