package server

import (
	"net/http"

	"github.com/ChineseLsh/x-feed-digest/digest/schedule"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

// subscriptionRequest is the JSON body for creating or updating a
// subscription. Enabled is a pointer so an omitted field on update means
// "leave as is" rather than "disable".
type subscriptionRequest struct {
	Name           string              `json:"name"`
	Handles        []feed.HandleRecord `json:"handles"`
	ScheduleHour   int                 `json:"schedule_hour"`
	ScheduleMinute int                 `json:"schedule_minute"`
	Enabled        *bool               `json:"enabled,omitempty"`
}

// handleSubscriptions serves GET (list) and POST (create) on
// /api/subscriptions
func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSubscriptions(w, r)
	case http.MethodPost:
		s.createSubscription(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	subs, err := s.scheduler.Store().ListSubscriptions(enabledOnly)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": subs})
}

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	sub, err := schedule.NewSubscription(req.Name, req.Handles, req.ScheduleHour, req.ScheduleMinute)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if req.Enabled != nil && !*req.Enabled {
		if err := sub.Reschedule(req.Name, req.Handles, req.ScheduleHour, req.ScheduleMinute, false); err != nil {
			writeEngineError(w, err)
			return
		}
	}

	if err := s.scheduler.Store().CreateSubscription(sub); err != nil {
		writeEngineError(w, err)
		return
	}
	s.logger.Infow("Subscription created", "id", sub.ID, "name", sub.Name)
	writeJSON(w, http.StatusCreated, sub)
}

// handleSubscription routes /api/subscriptions/{id} and its run action:
//
//	GET    /api/subscriptions/{id}
//	PUT    /api/subscriptions/{id}
//	DELETE /api/subscriptions/{id}
//	POST   /api/subscriptions/{id}/run
func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/subscriptions/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "subscription id required")
		return
	}
	subID := parts[0]

	if len(parts) == 2 && parts[1] == "run" {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.runSubscription(w, subID)
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "unknown subscription resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getSubscription(w, subID)
	case http.MethodPut:
		s.updateSubscription(w, r, subID)
	case http.MethodDelete:
		s.deleteSubscription(w, subID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) getSubscription(w http.ResponseWriter, subID string) {
	sub, err := s.scheduler.Store().GetSubscription(subID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) updateSubscription(w http.ResponseWriter, r *http.Request, subID string) {
	sub, err := s.scheduler.Store().GetSubscription(subID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req subscriptionRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	enabled := sub.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	if err := sub.Reschedule(req.Name, req.Handles, req.ScheduleHour, req.ScheduleMinute, enabled); err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.scheduler.Store().UpdateSubscription(sub); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) deleteSubscription(w http.ResponseWriter, subID string) {
	if err := s.scheduler.Store().DeleteSubscription(subID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": subID})
}

func (s *Server) runSubscription(w http.ResponseWriter, subID string) {
	job, err := s.scheduler.RunNow(subID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}
