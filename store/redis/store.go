// Package redis implements the durable job store on Redis via redigo.
//
// Layout under the configured namespace:
//
//	<ns>job:<id>        JSON-encoded job record
//	<ns>jobs            list of job ids in creation order
//	<ns>att:<id>:<name> hash {content_type, data}
//	<ns>attnames:<id>   list of attachment names in creation order
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gomodule/redigo/redis"

	queueErrors "github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/internal/redisconn"
	"github.com/greengoods/gardenqueue/job"
)

// Store is a Redis-backed job store.
type Store struct {
	pool      *redis.Pool
	namespace string
	options   Options
}

// NewStore creates a store; call Connect before use.
func NewStore(options Options) *Store {
	return &Store{
		namespace: options.Namespace,
		options:   options,
	}
}

// Connect establishes the Redis connection pool.
func (s *Store) Connect(ctx context.Context) error {
	s.pool = redisconn.NewPool(s.options.Connection())

	conn := s.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return queueErrors.NewConnectionError(s.options.URI,
			fmt.Errorf("ping failed: %w", err))
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	return nil
}

// Health checks the Redis connection.
func (s *Store) Health() error {
	if s.pool == nil {
		return queueErrors.ErrNotConnected
	}
	conn := s.pool.Get()
	defer conn.Close()

	_, err := conn.Do("PING")
	return err
}

func (s *Store) jobKey(id string) string { return s.namespace + "job:" + id }

func (s *Store) indexKey() string { return s.namespace + "jobs" }

func (s *Store) attKey(jobID, name string) string {
	return s.namespace + "att:" + jobID + ":" + name
}

func (s *Store) attNamesKey(jobID string) string { return s.namespace + "attnames:" + jobID }

// wrapWriteErr maps Redis out-of-memory failures onto the typed quota
// error so the consumer can show a storage message.
func wrapWriteErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "OOM") {
		return queueErrors.NewQuota("redis", err)
	}
	return queueErrors.NewStoreError(op, id, err)
}

// Put upserts a job record. MULTI/EXEC keeps the record write and the
// FIFO index append atomic, so no reader observes one without the other.
func (s *Store) Put(ctx context.Context, j job.Job) error {
	conn := s.pool.Get()
	defer conn.Close()

	data, err := json.Marshal(j)
	if err != nil {
		return queueErrors.NewStoreError("put", j.ID, err)
	}

	exists, err := redis.Int(conn.Do("EXISTS", s.jobKey(j.ID)))
	if err != nil {
		return queueErrors.NewStoreError("put", j.ID, err)
	}

	if err := conn.Send("MULTI"); err != nil {
		return wrapWriteErr("put", j.ID, err)
	}
	if exists == 0 {
		if err := conn.Send("RPUSH", s.indexKey(), j.ID); err != nil {
			return wrapWriteErr("put", j.ID, err)
		}
	}
	if err := conn.Send("SET", s.jobKey(j.ID), data); err != nil {
		return wrapWriteErr("put", j.ID, err)
	}
	if _, err := conn.Do("EXEC"); err != nil {
		return wrapWriteErr("put", j.ID, err)
	}
	return nil
}

// Get reads one job.
func (s *Store) Get(ctx context.Context, id string) (job.Job, error) {
	conn := s.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", s.jobKey(id)))
	if err == redis.ErrNil {
		return job.Job{}, queueErrors.NewStoreError("get", id, queueErrors.ErrJobNotFound)
	}
	if err != nil {
		return job.Job{}, queueErrors.NewStoreError("get", id, err)
	}

	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return job.Job{}, queueErrors.NewStoreError("get", id, err)
	}
	return j, nil
}

// List returns jobs matching the filter in creation order.
func (s *Store) List(ctx context.Context, f job.Filter) ([]job.Job, error) {
	conn := s.pool.Get()
	defer conn.Close()

	ids, err := redis.Strings(conn.Do("LRANGE", s.indexKey(), 0, -1))
	if err != nil {
		return nil, queueErrors.NewStoreError("list", "", err)
	}

	out := make([]job.Job, 0, len(ids))
	for _, id := range ids {
		data, err := redis.Bytes(conn.Do("GET", s.jobKey(id)))
		if err == redis.ErrNil {
			continue // removed concurrently
		}
		if err != nil {
			return nil, queueErrors.NewStoreError("list", id, err)
		}
		var j job.Job
		if err := json.Unmarshal(data, &j); err != nil {
			return nil, queueErrors.NewStoreError("list", id, err)
		}
		if f.Matches(j) {
			out = append(out, j)
		}
	}
	return out, nil
}

// Remove deletes a job, its index entry, and all its attachments.
func (s *Store) Remove(ctx context.Context, id string) error {
	conn := s.pool.Get()
	defer conn.Close()

	names, err := redis.Strings(conn.Do("LRANGE", s.attNamesKey(id), 0, -1))
	if err != nil && err != redis.ErrNil {
		return queueErrors.NewStoreError("remove", id, err)
	}

	if err := conn.Send("MULTI"); err != nil {
		return queueErrors.NewStoreError("remove", id, err)
	}
	conn.Send("DEL", s.jobKey(id))
	conn.Send("LREM", s.indexKey(), 0, id)
	for _, name := range names {
		conn.Send("DEL", s.attKey(id, name))
	}
	conn.Send("DEL", s.attNamesKey(id))
	if _, err := conn.Do("EXEC"); err != nil {
		return queueErrors.NewStoreError("remove", id, err)
	}
	return nil
}

// PutAttachment stores a binary blob addressable independently of the
// job record.
func (s *Store) PutAttachment(ctx context.Context, att job.Attachment) error {
	conn := s.pool.Get()
	defer conn.Close()

	exists, err := redis.Int(conn.Do("EXISTS", s.attKey(att.JobID, att.Name)))
	if err != nil {
		return wrapWriteErr("put_attachment", att.JobID, err)
	}

	if err := conn.Send("MULTI"); err != nil {
		return wrapWriteErr("put_attachment", att.JobID, err)
	}
	if exists == 0 {
		conn.Send("RPUSH", s.attNamesKey(att.JobID), att.Name)
	}
	conn.Send("HSET", s.attKey(att.JobID, att.Name),
		"content_type", att.ContentType,
		"data", att.Data,
	)
	if _, err := conn.Do("EXEC"); err != nil {
		return wrapWriteErr("put_attachment", att.JobID, err)
	}
	return nil
}

// GetAttachments returns all blobs for a job in creation order.
func (s *Store) GetAttachments(ctx context.Context, jobID string) ([]job.Attachment, error) {
	conn := s.pool.Get()
	defer conn.Close()

	names, err := redis.Strings(conn.Do("LRANGE", s.attNamesKey(jobID), 0, -1))
	if err != nil && err != redis.ErrNil {
		return nil, queueErrors.NewStoreError("get_attachments", jobID, err)
	}

	out := make([]job.Attachment, 0, len(names))
	for _, name := range names {
		values, err := redis.StringMap(conn.Do("HGETALL", s.attKey(jobID, name)))
		if err != nil {
			return nil, queueErrors.NewStoreError("get_attachments", jobID, err)
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, job.Attachment{
			JobID:       jobID,
			Name:        name,
			ContentType: values["content_type"],
			Data:        []byte(values["data"]),
		})
	}
	return out, nil
}

// RemoveAttachment deletes a single blob after remote upload.
func (s *Store) RemoveAttachment(ctx context.Context, jobID, name string) error {
	conn := s.pool.Get()
	defer conn.Close()

	removed, err := redis.Int(conn.Do("DEL", s.attKey(jobID, name)))
	if err != nil {
		return queueErrors.NewStoreError("remove_attachment", jobID, err)
	}
	if removed == 0 {
		return queueErrors.NewStoreError("remove_attachment", jobID, queueErrors.ErrAttachmentNotFound)
	}
	if _, err := conn.Do("LREM", s.attNamesKey(jobID), 0, name); err != nil {
		return queueErrors.NewStoreError("remove_attachment", jobID, err)
	}
	return nil
}
