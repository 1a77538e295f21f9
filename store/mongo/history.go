package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// WriteHistory upserts a snapshot document; later writes replace earlier
// ones.
func (s *Store) WriteHistory(ctx context.Context, j *job.Job) error {
	_, err := s.db.Collection(colHistory).ReplaceOne(ctx,
		bson.M{"_id": j.ID.String()},
		toJobModel(j),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("execq/mongo: write history: %w", err)
	}
	return nil
}

// ReadHistory returns the last recorded snapshot for the id.
func (s *Store) ReadHistory(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.db.Collection(colHistory).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/mongo: read history: %w", err)
	}
	return fromJobModel(&m)
}
