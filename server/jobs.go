package server

import (
	"encoding/json"
	"net/http"

	"github.com/mati2251/res/apperr"
)

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	id, err := s.jobs.Create()
	if err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Location", locationForJob(id))
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type jobPropertiesRequest struct {
	Image     string   `json:"image"`
	Artifacts []string `json:"artifacts,omitempty"`
}

func (s *Server) putJobProperties(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	var req jobPropertiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleError(w, apperr.Wrap(apperr.KindInvalid, err, "decoding request body"))
		return
	}
	if err := s.jobs.BindImage(id, req.Image, req.Artifacts); err != nil {
		s.handleError(w, err)
		return
	}
	job, err := s.jobs.GetJob(id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	job, err := s.jobs.GetJob(id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) putJobScript(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.handleError(w, apperr.Wrap(apperr.KindInvalid, err, "reading request body"))
		return
	}
	etag, err := s.jobs.PutScript(id, body, r.Header.Get("Etag"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPreconditionRequired {
			w.Header().Set("Etag", etag)
		}
		s.handleError(w, err)
		return
	}
	job, err := s.jobs.GetJob(id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Etag", etag)
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) getJobScript(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	b, err := s.jobs.GetScript(id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write(b)
}

func (s *Server) getJobState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	state, err := s.jobs.State(id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(state))
}

func (s *Server) putJobState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	verb := r.URL.Query().Get("state")
	if verb != "start" && verb != "stop" {
		s.handleError(w, apperr.New(apperr.KindInvalid, "state must be one of: start, stop"))
		return
	}
	if err := s.jobs.SetState(id, verb); err != nil {
		s.handleError(w, err)
		return
	}
	if verb == "start" {
		// Launch fails synchronously (script/image missing); the run
		// itself is awaited in the background -- the request returns once
		// the child has been spawned, not once it exits.
		handle, err := s.runnerx.Launch(id)
		if err != nil {
			s.handleError(w, apperr.Wrap(apperr.KindInternal, err, "launching job %d", id))
			return
		}
		go func() {
			if _, err := handle.Wait(); err != nil {
				s.logger.Printf("job %d run failed: %v", id, err)
			}
		}()
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getJobLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	b, err := s.readJobLog(id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write(b)
}

func (s *Server) getJobArtifacts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	files, err := s.artifacts.List(id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) getJobArtifactsData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	data, err := s.artifacts.Archive(id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\"artifacts.zip\"")
	w.Write(data)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	state := r.URL.Query().Get("state")
	items, total, err := s.jobs.List(state, skip, limit)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"skip":  skip,
		"limit": limit,
		"items": items,
	})
}

func locationForJob(id int64) string {
	return "/jobs/" + itoa(id) + "/"
}
