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

// EnqueueJob inserts the record; the unique _id doubles as the duplicate
// check. TypeIDs are K-sortable, so pending documents ordered by _id give
// FIFO claim order without a separate queue structure.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	_, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(j))
	if err != nil {
		if isDuplicateKey(err) {
			return execq.ErrJobAlreadyExists
		}
		return fmt.Errorf("execq/mongo: enqueue job: %w", err)
	}
	return nil
}

// ClaimJob atomically flips the oldest pending document to running.
// FindOneAndUpdate applies the filter and the update as one step, so two
// claimants can never both match the same document.
func (s *Store) ClaimJob(ctx context.Context) (*job.Job, error) {
	t := now()

	filter := bson.M{"status": string(job.StatusPending)}
	update := bson.M{
		"$set": bson.M{
			"status":     string(job.StatusRunning),
			"started_at": t,
			"updated_at": t,
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	var m jobModel
	err := s.db.Collection(colJobs).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("execq/mongo: claim job: %w", err)
	}
	return fromJobModel(&m)
}

// CancelJob cancels a pending or running job in one conditional update.
// The pre-image's status decides the reported outcome.
func (s *Store) CancelJob(ctx context.Context, jobID id.JobID) (job.CancelOutcome, error) {
	t := now()

	filter := bson.M{
		"_id": jobID.String(),
		"status": bson.M{"$in": []string{
			string(job.StatusPending), string(job.StatusRunning),
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":       string(job.StatusCancelled),
			"cancelled_at": t,
			"updated_at":   t,
		},
		"$inc": bson.M{"version": 1},
	}

	var before jobModel
	err := s.db.Collection(colJobs).
		FindOneAndUpdate(ctx, filter, update, findOneAndUpdateOpts(options.Before)).
		Decode(&before)
	if err == nil {
		if before.Status == string(job.StatusPending) {
			return job.CancelledFromQueue, nil
		}
		return job.CancelledRunning, nil
	}
	if !isNoDocuments(err) {
		return "", fmt.Errorf("execq/mongo: cancel job: %w", err)
	}

	// Nothing matched: the job is either unknown or already terminal.
	var m jobModel
	err = s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return "", execq.ErrJobNotFound
		}
		return "", fmt.Errorf("execq/mongo: cancel lookup: %w", err)
	}
	if m.Status == string(job.StatusCancelled) {
		return job.CancelAlreadyCancelled, nil
	}
	return job.CancelAlreadyCompleted, nil
}

// CompleteJob records the terminal outcome in one conditional update.
// A record cancelled while running keeps its status; only the output is
// stored.
func (s *Store) CompleteJob(ctx context.Context, jobID id.JobID, outcome job.Outcome, output string) (*job.Job, error) {
	t := now()
	col := s.db.Collection(colJobs)

	// Natural completion of a running job.
	var m jobModel
	err := col.FindOneAndUpdate(ctx,
		bson.M{"_id": jobID.String(), "status": string(job.StatusRunning)},
		bson.M{
			"$set": bson.M{
				"status":      string(outcome.Status()),
				"finished_at": t,
				"output":      output,
				"updated_at":  t,
			},
			"$inc": bson.M{"version": 1},
		},
		findOneAndUpdateOpts(options.After),
	).Decode(&m)
	if err == nil {
		return fromJobModel(&m)
	}
	if !isNoDocuments(err) {
		return nil, fmt.Errorf("execq/mongo: complete job: %w", err)
	}

	// Cancelled while running: keep the cancellation, store the output.
	err = col.FindOneAndUpdate(ctx,
		bson.M{"_id": jobID.String(), "status": string(job.StatusCancelled)},
		bson.M{"$set": bson.M{"output": output, "updated_at": t}},
		findOneAndUpdateOpts(options.After),
	).Decode(&m)
	if err == nil {
		return fromJobModel(&m)
	}
	if !isNoDocuments(err) {
		return nil, fmt.Errorf("execq/mongo: complete cancelled job: %w", err)
	}

	// Neither running nor cancelled: unknown or invalid.
	err = col.FindOne(ctx, bson.M{"_id": jobID.String()}).Err()
	if err != nil {
		if isNoDocuments(err) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/mongo: complete lookup: %w", err)
	}
	return nil, execq.ErrInvalidTransition
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

// ListJobsByStatus returns jobs matching the given status, oldest first.
func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colJobs).Find(ctx,
		bson.M{"status": string(status)}, findOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("execq/mongo: list jobs: %w", err)
	}
	defer cur.Close(ctx) //nolint:errcheck // close error is irrelevant after full drain

	var jobs []*job.Job
	for cur.Next(ctx) {
		var m jobModel
		if decErr := cur.Decode(&m); decErr != nil {
			return nil, fmt.Errorf("execq/mongo: list jobs decode: %w", decErr)
		}
		j, convErr := fromJobModel(&m)
		if convErr != nil {
			return nil, convErr
		}
		jobs = append(jobs, j)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("execq/mongo: list jobs cursor: %w", err)
	}
	return jobs, nil
}

// QueueLen returns the number of pending documents.
func (s *Store) QueueLen(ctx context.Context) (int64, error) {
	n, err := s.db.Collection(colJobs).CountDocuments(ctx,
		bson.M{"status": string(job.StatusPending)},
	)
	if err != nil {
		return 0, fmt.Errorf("execq/mongo: queue len: %w", err)
	}
	return n, nil
}

// CountJobs returns the number of records with the given status, or all
// records when status is empty.
func (s *Store) CountJobs(ctx context.Context, status job.Status) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}
	n, err := s.db.Collection(colJobs).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("execq/mongo: count jobs: %w", err)
	}
	return n, nil
}
