// Package classify buckets audited repositories into pipelines and core
// repositories and selects the policy that applies to each class.
package classify

import (
	"fmt"
	"strings"

	"pipelinehealth/internal/data/models"
)

type Class string

const (
	ClassPipeline Class = "pipeline"
	ClassCore     Class = "core"
)

func (c Class) String() string { return string(c) }

// PipelineSet is the set of repository names the pipeline registry lists.
type PipelineSet map[string]struct{}

func NewPipelineSet(names ...string) PipelineSet {
	s := make(PipelineSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s PipelineSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Classify returns ClassPipeline when the repository's name is listed in the
// pipeline registry and ClassCore otherwise.
func Classify(pipelines PipelineSet, repo *models.Repository) Class {
	if repo == nil {
		return ClassCore
	}
	return ClassifyName(pipelines, repo.Name)
}

// ClassifyName classifies by the name the repository was audited under. The
// metadata's own name can differ after a rename redirect.
func ClassifyName(pipelines PipelineSet, name string) Class {
	if pipelines.Contains(name) {
		return ClassPipeline
	}
	return ClassCore
}

// Settings holds the organization-wide values class policies derive from.
type Settings struct {
	// WebURL is the organization's website; core repositories point there and
	// pipelines point at WebURL/<name>.
	WebURL         string
	CoreTopics     []string
	PipelineTopics []string
}

func DefaultSettings() Settings {
	return Settings{
		WebURL:         "https://nf-co.re",
		CoreTopics:     []string{"nf-core"},
		PipelineTopics: []string{"nf-core", "nextflow", "workflow", "pipeline"},
	}
}

// Policy is the per-class configuration record checks are evaluated against.
type Policy struct {
	RequiredTopics []string
	WebURL         string
}

func PolicyFor(class Class, name string, s Settings) Policy {
	base := strings.TrimSuffix(s.WebURL, "/")
	switch class {
	case ClassPipeline:
		return Policy{
			RequiredTopics: s.PipelineTopics,
			WebURL:         fmt.Sprintf("%s/%s", base, name),
		}
	default:
		return Policy{
			RequiredTopics: s.CoreTopics,
			WebURL:         base,
		}
	}
}
