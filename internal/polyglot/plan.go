package polyglot

import (
	"sort"

	"uniconverter/internal/artifacts"
	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
)

// normalTargets maps an input category to the extension it is normalized
// into before merging.
var normalTargets = map[formats.Category]string{
	formats.CategoryImage:    "ico",
	formats.CategoryAudio:    "mp4",
	formats.CategoryVideo:    "mp4",
	formats.CategoryDocument: "pdf",
	formats.CategoryArchive:  "zip",
}

var rank = map[formats.Category]int{
	formats.CategoryVideo:    0,
	formats.CategoryAudio:    1,
	formats.CategoryImage:    2,
	formats.CategoryDocument: 3,
	formats.CategoryArchive:  4,
}

// baseCategories can host the other inputs.
var baseCategories = map[formats.Category]bool{
	formats.CategoryVideo:    true,
	formats.CategoryAudio:    true,
	formats.CategoryDocument: true,
}

// Input is a normalized artifact tagged with the category of the caller's
// original input. An audio input normalized to mp4 keeps CategoryAudio.
type Input struct {
	Artifact artifacts.Artifact
	Category formats.Category
}

// Job is a ranked merge plan.
type Job struct {
	Inputs []Input
	Base   Input
	Extras []Input
}

// NormalTarget returns the extension an input of category c is normalized
// into.
func NormalTarget(c formats.Category) (string, bool) {
	ext, ok := normalTargets[c]
	return ext, ok
}

// Plan ranks inputs and selects the base. It does no I/O.
func Plan(inputs []Input) (Job, error) {
	if len(inputs) < 2 {
		return Job{}, failure.New(failure.KindInvalidRequest, "a merge needs at least 2 inputs, got %d", len(inputs))
	}

	ranked := make([]Input, len(inputs))
	copy(ranked, inputs)
	for _, in := range ranked {
		if _, ok := rank[in.Category]; !ok {
			return Job{}, failure.New(failure.KindUnsupportedConversion, "cannot merge %s input %s", in.Category, in.Artifact.Name)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return rank[ranked[i].Category] < rank[ranked[j].Category]
	})

	base := -1
	for i, in := range ranked {
		if baseCategories[in.Category] {
			base = i
			break
		}
	}
	if base < 0 {
		return Job{}, failure.New(failure.KindMergeBaseNotFound, "no video, audio or document input among %d inputs", len(inputs))
	}

	job := Job{Inputs: ranked, Base: ranked[base]}
	for i, in := range ranked {
		if i != base {
			job.Extras = append(job.Extras, in)
		}
	}
	return job, nil
}
