// Package steps defines the static, ordered catalog of workflow stages.
//
// Stages are grouped into named phases (File Upload, Encoding, Decoding,
// Compare PSNR, Screenshots). Each stage is identified by a [Kind], a closed
// enum that callers switch on instead of holding renderer references. The
// [Catalog] precomputes the flattened step order and the start offset of
// every group so progress tracking and summary projection can work purely
// with flattened indices.
package steps
