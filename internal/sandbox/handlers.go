package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tarantool/go-option"

	"github.com/consulvault/consul_sdk_go/internal/consulapi"
	"github.com/consulvault/consul_sdk_go/pkg/agent"
	"github.com/consulvault/consul_sdk_go/pkg/kv"
)

// maxValueSize mirrors the agent's default kv_max_value_size.
const maxValueSize = 512 * 1024

func (s *Server) handleKVGet(w http.ResponseWriter, r *http.Request) {
	key := kvKey(r)
	q, err := kvQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if key == "" && !q.Recurse && !q.Keys {
		http.Error(w, "Missing key name", http.StatusBadRequest)
		return
	}

	resp, err := s.kv.GetRaw(r.Context(), key, q)
	s.writeMeta(w)
	if errors.Is(err, kv.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if q.Raw {
		w.Header().Set("Content-Type", http.DetectContentType(resp.Body))
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = w.Write(resp.Body)
}

func (s *Server) handleKVPut(w http.ResponseWriter, r *http.Request) {
	key := kvKey(r)
	if key == "" {
		http.Error(w, "Missing key name", http.StatusBadRequest)
		return
	}
	q, err := kvQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	value, err := io.ReadAll(io.LimitReader(r.Body, maxValueSize+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(value) > maxValueSize {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	body, err := s.kv.PutRaw(r.Context(), key, value, q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeMeta(w)
	writeRawJSON(w, body)
}

func (s *Server) handleKVDelete(w http.ResponseWriter, r *http.Request) {
	key := kvKey(r)
	q, err := kvQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if key == "" && !q.Recurse {
		http.Error(w, "Missing key name", http.StatusBadRequest)
		return
	}
	body, err := s.kv.DeleteRaw(r.Context(), key, q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeMeta(w)
	writeRawJSON(w, body)
}

func (s *Server) handleServiceRegister(w http.ResponseWriter, r *http.Request) {
	var def agent.ServiceDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "Request decode failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.agent.RegisterService(r.Context(), def); err != nil {
		writeAgentError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleServiceDeregister(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.DeregisterService(r.Context(), r.PathValue("id")); err != nil {
		writeAgentError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.agent.Services(r.Context())
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, services)
}

func (s *Server) handleCheckRegister(w http.ResponseWriter, r *http.Request) {
	var chk agent.Check
	if err := json.NewDecoder(r.Body).Decode(&chk); err != nil {
		http.Error(w, "Request decode failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.agent.RegisterCheck(r.Context(), chk); err != nil {
		writeAgentError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCheckDeregister(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.DeregisterCheck(r.Context(), r.PathValue("id")); err != nil {
		writeAgentError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.agent.Checks(r.Context())
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, checks)
}

func (s *Server) writeMeta(w http.ResponseWriter) {
	h := w.Header()
	h.Set(consulapi.HeaderIndex, strconv.FormatUint(s.kv.Index(), 10))
	h.Set(consulapi.HeaderKnownLeader, "true")
	h.Set(consulapi.HeaderLastContact, "0")
}

func kvKey(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/v1/kv/")
}

// kvQuery decodes the modifiers. recurse, raw and keys count when present,
// whatever their value.
func kvQuery(r *http.Request) (kv.Query, error) {
	values := r.URL.Query()
	q := kv.Query{
		Recurse: values.Has("recurse"),
		Raw:     values.Has("raw"),
		Keys:    values.Has("keys"),
	}
	if values.Has("dc") {
		q.Datacenter = option.Some(values.Get("dc"))
	}
	if values.Has("ns") {
		q.Namespace = option.Some(values.Get("ns"))
	}
	if values.Has("separator") {
		q.Separator = option.Some(values.Get("separator"))
	}
	if values.Has("flags") {
		flags, err := strconv.ParseUint(values.Get("flags"), 10, 64)
		if err != nil {
			return kv.Query{}, fmt.Errorf("invalid flags: %w", err)
		}
		q.Flags = option.Some(flags)
	}
	return q, nil
}

func writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, agent.ErrNameRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
