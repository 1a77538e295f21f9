package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// SubmitJobRequest is the body of POST /v1/jobs.
type SubmitJobRequest struct {
	Command string `json:"command"`
}

// CancelJobResponse reports what a cancel request actually did.
type CancelJobResponse struct {
	JobID   string            `json:"job_id"`
	Outcome job.CancelOutcome `json:"outcome"`
}

// JobCountsResponse groups record counts by status.
type JobCountsResponse struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
	QueueLen  int64 `json:"queue_len"`
}

func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	j, err := a.eng.Submit(r.Context(), req.Command)
	if err != nil {
		if errors.Is(err, execq.ErrEmptyCommand) {
			a.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.writeJSON(w, http.StatusCreated, j)
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job id: %v", err))
		return
	}

	j, err := a.eng.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, execq.ErrJobNotFound) {
			a.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, j)
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job id: %v", err))
		return
	}

	outcome, err := a.eng.Cancel(r.Context(), jobID)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if outcome == job.CancelNotFound {
		status = http.StatusNotFound
	}
	a.writeJSON(w, status, CancelJobResponse{
		JobID:   jobID.String(),
		Outcome: outcome,
	})
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	status := job.Status(r.URL.Query().Get("status"))
	switch status {
	case job.StatusPending, job.StatusRunning, job.StatusSucceeded,
		job.StatusFailed, job.StatusCancelled:
	default:
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", status))
		return
	}

	opts := job.ListOpts{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}

	jobs, err := a.eng.ListByStatus(r.Context(), status, opts)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}

	a.writeJSON(w, http.StatusOK, jobs)
}

func (a *API) jobCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var resp JobCountsResponse

	for _, pair := range []struct {
		status job.Status
		dst    *int64
	}{
		{job.StatusPending, &resp.Pending},
		{job.StatusRunning, &resp.Running},
		{job.StatusSucceeded, &resp.Succeeded},
		{job.StatusFailed, &resp.Failed},
		{job.StatusCancelled, &resp.Cancelled},
	} {
		n, err := a.eng.CountByStatus(ctx, pair.status)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		*pair.dst = n
	}

	qlen, err := a.eng.QueueLen(ctx)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.QueueLen = qlen

	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.Ping(r.Context()); err != nil {
		a.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 0 {
		return def
	}
	return n
}
