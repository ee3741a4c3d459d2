package attachments

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
	"github.com/greengoods/gardenqueue/store/memory"
)

// fakeUploader records uploads and returns predictable URLs.
type fakeUploader struct {
	uploads map[string][]byte
	failOn  string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if f.failOn != "" && key == f.failOn {
		return "", assert.AnError
	}
	f.uploads[key] = body
	return "https://media.greengoods.app/" + key, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func seededStore(t *testing.T, jobID string, atts ...job.Attachment) *memory.Store {
	t.Helper()
	s := memory.NewStore(memory.Options{})
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Put(context.Background(), job.Job{ID: jobID, Kind: job.KindWork, Status: job.StatusQueued}))
	for _, a := range atts {
		require.NoError(t, s.PutAttachment(context.Background(), a))
	}
	return s
}

func TestResolver_PassthroughURLs(t *testing.T) {
	up := newFakeUploader()
	r := NewResolver(seededStore(t, "j1"), up)

	media := []string{"ipfs://bafy123", "https://media.greengoods.app/x.jpg"}
	out, err := r.Resolve(context.Background(), "j1", media)
	require.NoError(t, err)
	assert.Equal(t, media, out)
	assert.Empty(t, up.uploads)
}

func TestResolver_UploadsAndDropsLocalBlob(t *testing.T) {
	ctx := context.Background()
	img := pngBytes(t, 1024, 768)
	store := seededStore(t, "j1", job.Attachment{
		JobID: "j1", Name: "before.png", ContentType: "image/png", Data: img,
	})
	up := newFakeUploader()
	r := NewResolver(store, up)

	out, err := r.Resolve(ctx, "j1", []string{"att://before.png"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://media.greengoods.app/j1/before.png", out[0])

	// Original and preview both uploaded.
	assert.Contains(t, up.uploads, "j1/before.png")
	assert.Contains(t, up.uploads, "j1/preview-before.png")

	// Local blob dropped once the remote copy exists.
	atts, err := store.GetAttachments(ctx, "j1")
	require.NoError(t, err)
	assert.Empty(t, atts)
}

func TestResolver_MissingReferenceFails(t *testing.T) {
	r := NewResolver(seededStore(t, "j1"), newFakeUploader())

	_, err := r.Resolve(context.Background(), "j1", []string{"att://nope.jpg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "names no stored attachment")
}

func TestResolver_UploadFailurePropagates(t *testing.T) {
	store := seededStore(t, "j1", job.Attachment{
		JobID: "j1", Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 8, 8),
	})
	up := newFakeUploader()
	up.failOn = "j1/a.png"
	r := NewResolver(store, up)

	_, err := r.Resolve(context.Background(), "j1", []string{"att://a.png"})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestPreview_ResizesWideImages(t *testing.T) {
	out, err := Preview(pngBytes(t, 2048, 512))
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), PreviewMaxWidth)
}

func TestPreview_RejectsNonImages(t *testing.T) {
	_, err := Preview([]byte("not an image"))
	assert.Error(t, err)
}
