package daemon

import (
	"errors"
	"net/http"
	"strings"

	"demoflow/internal/api"
	"demoflow/internal/logging"
	"demoflow/internal/playback"
	"demoflow/internal/services"
	"demoflow/internal/session"
	"demoflow/internal/summary"
)

func (s *apiServer) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	switch op := r.PathValue("op"); op {
	case "goto":
		var req api.IndexRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		err := sess.GoTo(req.Index)
		switch {
		case err == nil:
			s.writeJSON(w, http.StatusOK, api.GoToResponse{Moved: true, Current: sess.Progress().Current()})
		case errors.Is(err, session.ErrStepLocked):
			// A locked step is a normal user outcome, not a failure.
			s.writeJSON(w, http.StatusConflict, api.GoToResponse{Moved: false, Current: sess.Progress().Current()})
		default:
			s.writeServiceError(w, r, err)
		}
		return
	case "next":
		sess.Next()
	case "previous":
		sess.Previous()
	case "complete":
		var req api.IndexRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if err := sess.Complete(req.Index); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	case "reset-group":
		req := api.GroupRequest{Group: sess.Progress().CurrentGroupIndex()}
		if err := decodeBody(r, &req); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if err := sess.ResetGroup(req.Group); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	default:
		s.writeError(w, http.StatusNotFound, "unknown workflow operation "+op)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: sess.View()})
}

func (s *apiServer) handleUpstream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var err error
	switch kind := r.PathValue("kind"); kind {
	case "upload":
		var in summary.Upload
		if err = decodeBody(r, &in); err == nil {
			sess.SetUpload(in)
		}
	case "encode":
		var in summary.Encode
		if err = decodeBody(r, &in); err == nil {
			sess.SetEncode(in)
		}
	case "decode":
		var in summary.Decode
		if err = decodeBody(r, &in); err == nil {
			sess.SetDecode(in)
		}
	case "decode-progress":
		var in summary.DecodeProgress
		if err = decodeBody(r, &in); err == nil {
			sess.ObserveDecodeProgress(in)
		}
	case "comparison":
		var in api.ComparisonRequest
		if err = decodeBody(r, &in); err == nil {
			sess.SetComparison(in.Codecs)
		}
	case "search":
		var in summary.Search
		if err = decodeBody(r, &in); err == nil {
			sess.SetSearch(in)
		}
	default:
		s.writeError(w, http.StatusNotFound, "unknown upstream result "+kind)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: sess.View()})
}

func (s *apiServer) handleBackend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	client := s.daemon.backend
	if client == nil {
		s.writeError(w, http.StatusServiceUnavailable, "processing backend not configured")
		return
	}
	switch op := r.PathValue("op"); op {
	case "decode-pump":
		var req api.DecodePumpRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if err := sess.StartDecodePump(s.daemon.baseContext(), client, req.Key); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, api.SessionResponse{Session: sess.View()})
	case "compare":
		var req api.CompareRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Key) == "" {
			s.writeServiceError(w, r, services.Wrap(services.ErrValidation, "api", "compare", "key is required", nil))
			return
		}
		codecs, err := client.CompareCodecs(r.Context(), req.Key, req.Quality)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		sess.SetComparison(codecs)
		s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: sess.View()})
	default:
		s.writeError(w, http.StatusNotFound, "unknown backend operation "+op)
	}
}

func (s *apiServer) handlePlayback(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var err error
	switch op := r.PathValue("op"); op {
	case "play-pause":
		err = sess.PlayPause(r.Context())
	case "skip":
		var req api.SkipRequest
		if err = decodeBody(r, &req); err != nil {
			break
		}
		var dir playback.Direction
		if dir, err = playback.ParseDirection(req.Direction); err != nil {
			err = services.Wrap(services.ErrValidation, "api", "skip", "", err)
			break
		}
		err = sess.Skip(dir)
	case "scrub":
		var req api.ScrubRequest
		if err = decodeBody(r, &req); err == nil {
			err = sess.Scrub(req.Seconds)
		}
	case "reset":
		sess.ResetComparison()
	default:
		s.writeError(w, http.StatusNotFound, "unknown playback operation "+op)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: sess.View()})
}

func (s *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	id, err := playback.ParseStreamID(r.PathValue("stream"))
	if err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrValidation, "api", "stream", "", err))
		return
	}
	switch signal := r.PathValue("signal"); signal {
	case "ready":
		err = sess.StreamReady(id)
	case "buffering":
		var req api.BufferingRequest
		if err = decodeBody(r, &req); err == nil {
			err = sess.StreamBuffering(id, req.Buffering)
		}
	case "error":
		var req api.StreamErrorRequest
		if err = decodeBody(r, &req); err == nil {
			err = sess.StreamError(id, req.Message)
		}
	case "timeupdate":
		var req api.TimeRequest
		if err = decodeBody(r, &req); err == nil {
			sess.TimeUpdate(id, req.Seconds)
		}
	case "metadata":
		var req api.TimeRequest
		if err = decodeBody(r, &req); err == nil {
			sess.LoadedMetadata(id, req.Seconds)
		}
	default:
		s.writeError(w, http.StatusNotFound, "unknown stream signal "+signal)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Debug("stream signal",
		logging.String(logging.FieldSessionID, sess.ID()),
		logging.String(logging.FieldStream, string(id)),
		logging.String("signal", r.PathValue("signal")),
	)
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: sess.View()})
}
