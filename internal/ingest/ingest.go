package ingest

import (
	"context"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/core"
)

// DirStats summarizes one pass over the intake directory.
type DirStats struct {
	Scanned   uint32 // directory entries listed
	Matched   uint32 // regular files handed to the processor
	Skipped   uint32 // directories, non-regular and (optionally) hidden entries
	Succeeded uint32
	Failed    uint32

	Processed       uint32
	ManualReview    uint32
	Enquiries       uint32
	LikelyDuplicate uint32
}

func (s *DirStats) count(d constants.Decision) {
	switch d {
	case constants.DecisionProcessed:
		s.Processed++
	case constants.DecisionManualReview:
		s.ManualReview++
	case constants.DecisionEnquiries:
		s.Enquiries++
	case constants.DecisionLikelyDuplicate:
		s.LikelyDuplicate++
	}
}

// FileProcessor triages a single file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (core.FileResult, error)
}
