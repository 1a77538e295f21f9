package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// jobToArgs flattens a job into field/value pairs for HSET and for
// passing through Lua scripts as ARGV.
func jobToArgs(j *job.Job) []interface{} {
	args := []interface{}{
		"id", j.ID.String(),
		"command", j.Command,
		"status", string(j.Status),
		"version", strconv.FormatInt(j.Version, 10),
		"output", j.Output,
		"created_at", j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at", j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.StartedAt != nil {
		args = append(args, "started_at", j.StartedAt.Format(time.RFC3339Nano))
	}
	if j.FinishedAt != nil {
		args = append(args, "finished_at", j.FinishedAt.Format(time.RFC3339Nano))
	}
	if j.CancelledAt != nil {
		args = append(args, "cancelled_at", j.CancelledAt.Format(time.RFC3339Nano))
	}
	return args
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("execq/redis: parse job id: %w", err)
	}

	version, _ := strconv.ParseInt(m["version"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		ID:      jID,
		Command: m["command"],
		Status:  job.Status(m["status"]),
		Version: version,
		Output:  m["output"],
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	j.StartedAt = parseTimePtr(m["started_at"])
	j.FinishedAt = parseTimePtr(m["finished_at"])
	j.CancelledAt = parseTimePtr(m["cancelled_at"])

	return j, nil
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

// flatToMap converts a Lua HGETALL-style reply ({field, value, ...})
// into a string map.
func flatToMap(flat []interface{}) map[string]string {
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, kOK := flat[i].(string)
		v, vOK := flat[i+1].(string)
		if kOK && vOK {
			m[k] = v
		}
	}
	return m
}
