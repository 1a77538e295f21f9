package mongo

import (
	"fmt"
	"time"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

type jobModel struct {
	ID          string     `bson:"_id"`
	Command     string     `bson:"command"`
	Status      string     `bson:"status"`
	Version     int64      `bson:"version"`
	Output      string     `bson:"output"`
	StartedAt   *time.Time `bson:"started_at,omitempty"`
	FinishedAt  *time.Time `bson:"finished_at,omitempty"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:          j.ID.String(),
		Command:     j.Command,
		Status:      string(j.Status),
		Version:     j.Version,
		Output:      j.Output,
		StartedAt:   j.StartedAt,
		FinishedAt:  j.FinishedAt,
		CancelledAt: j.CancelledAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("execq/mongo: parse job id %q: %w", m.ID, err)
	}

	return &job.Job{
		Entity: execq.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          parsedID,
		Command:     m.Command,
		Status:      job.Status(m.Status),
		Version:     m.Version,
		Output:      m.Output,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		CancelledAt: m.CancelledAt,
	}, nil
}
