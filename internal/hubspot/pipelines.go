package hubspot

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

// Pipeline is a deal (or ticket) pipeline
type Pipeline struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	DisplayOrder int     `json:"displayOrder"`
	Archived     bool    `json:"archived"`
	Stages       []Stage `json:"stages"`
}

// Stage is one stage of a pipeline
type Stage struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	DisplayOrder int               `json:"displayOrder"`
	Archived     bool              `json:"archived"`
	Metadata     map[string]string `json:"metadata"`
}

// IsClosed reports whether the stage is a won/lost terminal stage
func (s Stage) IsClosed() bool {
	return strings.EqualFold(s.Metadata["isClosed"], "true")
}

// Pipelines lists the pipelines of an object type
func (c *Client) Pipelines(ctx context.Context, objectType domain.ObjectType) ([]Pipeline, error) {
	var out struct {
		Results []Pipeline `json:"results"`
	}
	if err := c.do(ctx, "pipelines.list", http.MethodGet, "/crm/v3/pipelines/"+objectType.APIName(), nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// DefaultStage picks the lowest display-order open stage of the lowest
// display-order pipeline, or of the pipeline with the given id or label when
// one is named. ok is false when nothing qualifies.
func DefaultStage(pipelines []Pipeline, pipeline string) (pipelineID, stageID string, ok bool) {
	candidates := make([]Pipeline, 0, len(pipelines))
	for _, p := range pipelines {
		if p.Archived {
			continue
		}
		if pipeline != "" && p.ID != pipeline && !strings.EqualFold(p.Label, pipeline) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return "", "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DisplayOrder < candidates[j].DisplayOrder
	})

	p := candidates[0]
	var best *Stage
	for i := range p.Stages {
		s := &p.Stages[i]
		if s.Archived || s.IsClosed() {
			continue
		}
		if best == nil || s.DisplayOrder < best.DisplayOrder {
			best = s
		}
	}
	if best == nil {
		return "", "", false
	}
	return p.ID, best.ID, true
}
