// Package memory implements the job store in process memory. It backs
// tests and ephemeral deployments; durability comes from the redis and
// postgres stores.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
)

// Options for the memory store.
type Options struct {
	// MaxBytes caps total attachment bytes; exceeding it surfaces a
	// quota error, matching the durable stores' behavior. Zero means
	// unlimited.
	MaxBytes int
}

// Store is an in-memory job store.
type Store struct {
	options Options

	mu          sync.RWMutex
	jobs        map[string]job.Job
	seq         map[string]int
	nextSeq     int
	attachments map[string][]job.Attachment
	attBytes    int
	connected   bool
}

// NewStore creates an empty memory store.
func NewStore(options Options) *Store {
	return &Store{
		options:     options,
		jobs:        make(map[string]job.Job),
		seq:         make(map[string]int),
		attachments: make(map[string][]job.Attachment),
	}
}

// Connect marks the store usable.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Close clears connection state; records are kept so a reconnect in
// tests observes them.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// Health reports whether the store is connected.
func (s *Store) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return errors.ErrNotConnected
	}
	return nil
}

// Put upserts a job record. The write is atomic: readers never observe
// a partially updated record.
func (s *Store) Put(ctx context.Context, j job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return errors.NewStoreError("put", j.ID, errors.ErrNotConnected)
	}
	if _, ok := s.seq[j.ID]; !ok {
		s.seq[j.ID] = s.nextSeq
		s.nextSeq++
	}
	s.jobs[j.ID] = j
	return nil
}

// Get reads one job.
func (s *Store) Get(ctx context.Context, id string) (job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, errors.NewStoreError("get", id, errors.ErrJobNotFound)
	}
	return j, nil
}

// List returns jobs matching the filter in creation (FIFO) order.
func (s *Store) List(ctx context.Context, f job.Filter) ([]job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if f.Matches(j) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return s.seq[out[a].ID] < s.seq[out[b].ID]
	})
	return out, nil
}

// Remove deletes a job and its attachments.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	delete(s.seq, id)
	for _, a := range s.attachments[id] {
		s.attBytes -= len(a.Data)
	}
	delete(s.attachments, id)
	return nil
}

// PutAttachment associates a binary blob with a job id.
func (s *Store) PutAttachment(ctx context.Context, att job.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.options.MaxBytes > 0 && s.attBytes+len(att.Data) > s.options.MaxBytes {
		return errors.NewQuota("memory", errors.ErrStorageQuota)
	}

	existing := s.attachments[att.JobID]
	for i, a := range existing {
		if a.Name == att.Name {
			s.attBytes += len(att.Data) - len(a.Data)
			existing[i] = att
			return nil
		}
	}
	s.attachments[att.JobID] = append(existing, att)
	s.attBytes += len(att.Data)
	return nil
}

// GetAttachments returns all blobs for a job id.
func (s *Store) GetAttachments(ctx context.Context, jobID string) ([]job.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	atts := s.attachments[jobID]
	out := make([]job.Attachment, len(atts))
	copy(out, atts)
	return out, nil
}

// RemoveAttachment deletes a single blob, typically after it has been
// uploaded to remote storage and replaced by a content identifier.
func (s *Store) RemoveAttachment(ctx context.Context, jobID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	atts := s.attachments[jobID]
	for i, a := range atts {
		if a.Name == name {
			s.attBytes -= len(a.Data)
			s.attachments[jobID] = append(atts[:i], atts[i+1:]...)
			return nil
		}
	}
	return errors.NewStoreError("remove_attachment", jobID, errors.ErrAttachmentNotFound)
}
