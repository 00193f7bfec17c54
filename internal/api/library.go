package api

import (
	"net/http"

	"staybook/internal/models"
	"staybook/internal/pagination"
	"staybook/internal/service"
)

func (s *HTTPServer) handleListFavorites(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	p, err := pagination.Parse(r.URL.Query(), service.FavoriteSort)
	if err != nil {
		return err
	}
	env, err := s.deps.Favorites.List(r.Context(), scope, p)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, env)
}

func (s *HTTPServer) handleAddFavorite(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	var req service.FavoriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	fav, err := s.deps.Favorites.Add(r.Context(), scope, req.RoomID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, fav)
}

func (s *HTTPServer) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	roomID, err := pathID(r, "roomId")
	if err != nil {
		return err
	}
	if err := s.deps.Favorites.Remove(r.Context(), scope, roomID); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, message{Message: "removed from favorites"})
}

func (s *HTTPServer) handleListCollections(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	p, err := pagination.Parse(r.URL.Query(), service.CollectionSort)
	if err != nil {
		return err
	}
	env, err := s.deps.Collections.List(r.Context(), scope, p)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, env)
}

func (s *HTTPServer) handleCreateCollection(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	var req service.CollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	c, err := s.deps.Collections.Create(r.Context(), scope, req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, c)
}

func (s *HTTPServer) handleGetCollection(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	c, err := s.deps.Collections.Get(r.Context(), scope, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) handleUpdateCollection(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var upd models.CollectionUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		return err
	}
	c, err := s.deps.Collections.Update(r.Context(), scope, id, upd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) handleDeleteCollection(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.deps.Collections.Delete(r.Context(), scope, id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, message{Message: "collection deleted"})
}
