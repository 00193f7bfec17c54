package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"staybook/internal/errs"
	"staybook/internal/models"
	"staybook/internal/pagination"
	"staybook/internal/service"
)

func roomFilter(q url.Values) (models.RoomFilter, error) {
	f := models.RoomFilter{
		Query:    strings.TrimSpace(q.Get("q")),
		Type:     strings.TrimSpace(q.Get("type")),
		Location: strings.TrimSpace(q.Get("location")),
	}
	var err error
	if f.MinPrice, err = parseFloat(q.Get("min_price"), "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parseFloat(q.Get("max_price"), "max_price"); err != nil {
		return f, err
	}
	for _, a := range q["amenity"] {
		if a = strings.TrimSpace(a); a != "" {
			f.Amenities = append(f.Amenities, a)
		}
	}
	if raw := q.Get("host_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, errs.BadRequest("invalid host_id")
		}
		f.HostID = id
	}
	return f, nil
}

func (s *HTTPServer) listRooms(w http.ResponseWriter, r *http.Request, spec pagination.SortSpec) error {
	q := r.URL.Query()
	p, err := pagination.Parse(q, spec)
	if err != nil {
		return err
	}
	filter, err := roomFilter(q)
	if err != nil {
		return err
	}
	env, err := s.deps.Rooms.List(r.Context(), filter, p)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, env)
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) error {
	return s.listRooms(w, r, service.RoomSort)
}

func (s *HTTPServer) handleSearchRooms(w http.ResponseWriter, r *http.Request) error {
	return s.listRooms(w, r, service.RoomSearchSort)
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	room, err := s.deps.Rooms.Get(r.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) error {
	p, _, err := caller(r)
	if err != nil {
		return err
	}
	var req service.RoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	room, err := s.deps.Rooms.Create(r.Context(), p.ID, req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, room)
}

func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req service.RoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	room, err := s.deps.Rooms.Update(r.Context(), scope, id, req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.deps.Rooms.Delete(r.Context(), scope, id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, message{Message: "room deleted"})
}

func (s *HTTPServer) handleRoomImage(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	file, name, err := s.formFile(w, r, "image")
	if err != nil {
		return err
	}
	defer file.Close()

	primary := false
	if raw := r.FormValue("is_primary"); raw != "" {
		if primary, err = strconv.ParseBool(raw); err != nil {
			return errs.BadRequest("invalid is_primary")
		}
	}
	img, err := s.deps.Rooms.AddImage(r.Context(), scope, id, name, file, primary)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, img)
}
