package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mati2251/res/apperr"
)

func (s *Server) putImage(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	body, err := readBody(r)
	if err != nil {
		s.handleError(w, apperr.Wrap(apperr.KindInvalid, err, "reading request body"))
		return
	}

	etag, err := s.images.Put(name, body, r.Header.Get("ETag"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPreconditionRequired {
			w.Header().Set("ETag", etag)
		}
		s.handleError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/images/%s/properties", name))
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getImageRaw(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	b, err := s.images.Get(name)
	if err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(b)
}

func (s *Server) getImageProperties(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	props, err := s.images.Properties(name)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) redirectImageProperties(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	http.Redirect(w, r, fmt.Sprintf("/images/%s/properties", name), http.StatusSeeOther)
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.images.Delete(name); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	items, total, err := s.images.List(skip, limit)
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
