package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	queueErrors "github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)

	options := DefaultOptions()
	options.URI = "redis://" + mr.Addr() + "/"

	s := NewStore(options)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { s.Close() })

	return s
}

func newJob(id string, kind job.Kind) job.Job {
	return job.Job{
		ID:        id,
		Kind:      kind,
		Payload:   json.RawMessage(`{"title":"weeding"}`),
		Status:    job.StatusQueued,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	j := newJob("j1", job.KindWork)
	j.Sender = "0xabc"
	require.NoError(t, s.Put(ctx, j))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.KindWork, got.Kind)
	assert.Equal(t, "0xabc", got.Sender)
	assert.JSONEq(t, `{"title":"weeding"}`, string(got.Payload))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, queueErrors.ErrJobNotFound)
}

func TestStore_UpsertKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, newJob("a", job.KindWork)))
	require.NoError(t, s.Put(ctx, newJob("b", job.KindWork)))

	// Re-putting an existing job must not move it in the FIFO index.
	a, err := s.Get(ctx, "a")
	require.NoError(t, err)
	a.Status = job.StatusProcessing
	require.NoError(t, s.Put(ctx, a))

	all, err := s.List(ctx, job.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, job.StatusProcessing, all[0].Status)
}

func TestStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	w := newJob("w", job.KindWork)
	a := newJob("a", job.KindApproval)
	a.Synced = true
	a.Status = job.StatusCompleted
	require.NoError(t, s.Put(ctx, w))
	require.NoError(t, s.Put(ctx, a))

	pending, err := s.List(ctx, job.Filter{Synced: job.Bool(false)})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "w", pending[0].ID)

	approvals, err := s.List(ctx, job.Filter{Kind: job.KindApproval})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "a", approvals[0].ID)
}

func TestStore_Attachments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, newJob("j1", job.KindWork)))

	blob := []byte{0xFF, 0xD8, 0xFF, 0xE0} // JPEG magic
	require.NoError(t, s.PutAttachment(ctx, job.Attachment{
		JobID: "j1", Name: "before.jpg", ContentType: "image/jpeg", Data: blob,
	}))
	require.NoError(t, s.PutAttachment(ctx, job.Attachment{
		JobID: "j1", Name: "after.jpg", ContentType: "image/jpeg", Data: blob,
	}))

	atts, err := s.GetAttachments(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Equal(t, "before.jpg", atts[0].Name)
	assert.Equal(t, "image/jpeg", atts[0].ContentType)
	assert.Equal(t, blob, atts[0].Data)

	require.NoError(t, s.RemoveAttachment(ctx, "j1", "before.jpg"))
	atts, err = s.GetAttachments(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "after.jpg", atts[0].Name)

	err = s.RemoveAttachment(ctx, "j1", "before.jpg")
	assert.ErrorIs(t, err, queueErrors.ErrAttachmentNotFound)
}

func TestStore_RemoveCleansEverything(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, newJob("j1", job.KindWork)))
	require.NoError(t, s.PutAttachment(ctx, job.Attachment{JobID: "j1", Name: "a", Data: []byte{1}}))

	require.NoError(t, s.Remove(ctx, "j1"))

	_, err := s.Get(ctx, "j1")
	assert.ErrorIs(t, err, queueErrors.ErrJobNotFound)

	atts, err := s.GetAttachments(ctx, "j1")
	require.NoError(t, err)
	assert.Empty(t, atts)

	all, err := s.List(ctx, job.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_SurvivesReconnect(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	options := DefaultOptions()
	options.URI = "redis://" + mr.Addr() + "/"

	s := NewStore(options)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Put(ctx, newJob("j1", job.KindWork)))
	require.NoError(t, s.Close())

	// A fresh store over the same backend sees the persisted job,
	// which is what recovery after a crashed session relies on.
	s2 := NewStore(options)
	require.NoError(t, s2.Connect(ctx))
	defer s2.Close()

	got, err := s2.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", got.ID)
}
