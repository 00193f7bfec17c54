package api

import (
	"net/http"

	"staybook/internal/errs"
	"staybook/internal/models"
)

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) error {
	p, _, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	user, err := s.deps.Users.Get(r.Context(), p.ID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var upd models.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		return err
	}
	user, err := s.deps.Users.Update(r.Context(), scope, id, upd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleProfileImage(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if scope.UserID() != id {
		return errs.Forbidden("you can only update your own profile image")
	}
	file, name, err := s.formFile(w, r, "image")
	if err != nil {
		return err
	}
	defer file.Close()

	user, err := s.deps.Users.SetProfileImage(r.Context(), scope, id, name, file)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleGetSettings(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	prefs, err := s.deps.Settings.Get(r.Context(), scope)
	if err != nil {
		return errs.Internal("failed to load settings", err)
	}
	return writeJSON(w, http.StatusOK, prefs)
}

func (s *HTTPServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	var patch models.SettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		return err
	}
	prefs, err := s.deps.Settings.Update(r.Context(), scope, patch)
	if err != nil {
		return errs.Internal("failed to update settings", err)
	}
	return writeJSON(w, http.StatusOK, prefs)
}

// handleGetUserSettings serves a user's settings to that user only.
func (s *HTTPServer) handleGetUserSettings(w http.ResponseWriter, r *http.Request) error {
	p, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "userId")
	if err != nil {
		return err
	}
	if id != p.ID {
		return errs.Forbidden("you can only view your own settings")
	}
	prefs, err := s.deps.Settings.Get(r.Context(), scope)
	if err != nil {
		return errs.Internal("failed to load settings", err)
	}
	return writeJSON(w, http.StatusOK, prefs)
}
