package server

import (
	"encoding/json"
	"net/http"

	"github.com/mati2251/res/apperr"
	"github.com/mati2251/res/pipeline"
)

type pipelineStageRequest struct {
	Name      string   `json:"name"`
	Image     string   `json:"image"`
	Script    []string `json:"script"`
	Artifacts []string `json:"artifacts,omitempty"`
}

type createPipelineRequest struct {
	Jobs []pipelineStageRequest `json:"jobs"`
}

func (s *Server) createPipeline(w http.ResponseWriter, r *http.Request) {
	var req createPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleError(w, apperr.Wrap(apperr.KindInvalid, err, "decoding request body"))
		return
	}

	stages := make([]pipeline.Stage, 0, len(req.Jobs))
	for _, j := range req.Jobs {
		stages = append(stages, pipeline.Stage{
			Name:        j.Name,
			Image:       j.Image,
			ScriptLines: j.Script,
			Artifacts:   j.Artifacts,
		})
	}

	ids, err := s.pipeline.Create(stages)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.pipeline.RunDetached(ids)
	writeJSON(w, http.StatusOK, ids)
}
