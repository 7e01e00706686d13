package http

import (
	"net/http"

	"babywallet/internal/log"
	"babywallet/internal/services"
)

func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request, accountID string) {
	var req createChildRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	target, err := ParseMoneyField("target_amount", req.TargetAmount)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	dob, err := ParseDateField("date_of_birth", req.DateOfBirth)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	child, err := s.svc.CreateChild(r.Context(), accountID, services.CreateChildInput{
		Name:         sanitizeInput(req.Name),
		Age:          req.Age,
		DateOfBirth:  dob,
		TargetAmount: target,
		ColorTheme:   sanitizeInput(req.ColorTheme),
	})
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	profile, err := s.svc.GetChildProfile(r.Context(), accountID, child.ID)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/children/"+child.ID).
		Body(newChildResponse(profile)).
		Write(w)
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request, accountID string) {
	profiles, err := s.svc.ListChildren(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	out := make([]childResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, newChildResponse(p))
	}
	NewJSONResponse().Body(map[string]any{"children": out}).Write(w)
}

func (s *Server) handleGetChild(w http.ResponseWriter, r *http.Request, accountID string) {
	profile, err := s.svc.GetChildProfile(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newChildResponse(profile)).Write(w)
}

func (s *Server) handleUpdateChild(w http.ResponseWriter, r *http.Request, accountID string) {
	var req updateChildRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	in := services.UpdateChildInput{}
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		in.Name = &name
	}
	if req.ColorTheme != nil {
		theme := sanitizeInput(*req.ColorTheme)
		in.ColorTheme = &theme
	}
	if req.TargetAmount != nil {
		target, err := ParseMoneyField("target_amount", *req.TargetAmount)
		if err != nil {
			s.writeError(w, r, log.OpUpdate, err)
			return
		}
		in.TargetAmount = &target
	}

	id := r.PathValue("id")
	if _, err := s.svc.UpdateChild(r.Context(), accountID, id, in); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	profile, err := s.svc.GetChildProfile(r.Context(), accountID, id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newChildResponse(profile)).Write(w)
}

func (s *Server) handleDeleteChild(w http.ResponseWriter, r *http.Request, accountID string) {
	if err := s.svc.DeleteChild(r.Context(), accountID, r.PathValue("id")); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
