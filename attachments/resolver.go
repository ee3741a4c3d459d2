package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
	"github.com/greengoods/gardenqueue/metrics"
)

// RefScheme prefixes a media entry that points at a locally stored
// attachment rather than an already-uploaded content URL.
const RefScheme = "att://"

// BlobStore is the slice of the job store the resolver needs.
type BlobStore interface {
	GetAttachments(ctx context.Context, jobID string) ([]job.Attachment, error)
	RemoveAttachment(ctx context.Context, jobID, name string) error
}

// Resolver swaps att:// media references for remote content URLs,
// uploading the blob (and a preview for images) on first encounter.
type Resolver struct {
	store    BlobStore
	uploader Uploader

	// KeepLocal retains the local blob after upload instead of
	// dropping it. Off by default: once the remote copy exists the
	// content URL in the payload is the source of truth.
	KeepLocal bool
}

// NewResolver creates a resolver over a blob store and an uploader.
func NewResolver(store BlobStore, uploader Uploader) *Resolver {
	return &Resolver{store: store, uploader: uploader}
}

// IsRef reports whether a media entry is a local attachment reference.
func IsRef(media string) bool { return strings.HasPrefix(media, RefScheme) }

// Resolve replaces every att:// entry in media with the URL of the
// uploaded blob. Entries that are already URLs pass through untouched.
// A reference naming a missing attachment is an error; the caller
// treats it as permanent since re-resolving cannot succeed.
func (r *Resolver) Resolve(ctx context.Context, jobID string, media []string) ([]string, error) {
	if len(media) == 0 {
		return media, nil
	}

	var atts []job.Attachment
	byName := map[string]job.Attachment{}

	out := make([]string, len(media))
	for i, m := range media {
		if !IsRef(m) {
			out[i] = m
			continue
		}

		if atts == nil {
			var err error
			atts, err = r.store.GetAttachments(ctx, jobID)
			if err != nil {
				return nil, fmt.Errorf("load attachments for %s: %w", jobID, err)
			}
			for _, a := range atts {
				byName[a.Name] = a
			}
		}

		name := strings.TrimPrefix(m, RefScheme)
		att, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("media reference %q names no stored attachment", m)
		}

		url, err := r.uploader.Upload(ctx, jobID+"/"+att.Name, att.Data, att.ContentType)
		if err != nil {
			// Upload trouble is connectivity, not content; the next
			// flush retries it.
			return nil, errors.NewTransient("upload_media",
				fmt.Errorf("upload %s: %w", att.Name, err))
		}
		metrics.AttachmentBytesUploaded.Add(float64(len(att.Data)))

		if preview, perr := Preview(att.Data); perr == nil {
			if _, perr := r.uploader.Upload(ctx, jobID+"/preview-"+att.Name, preview, "image/jpeg"); perr != nil {
				slog.Warn("Preview upload failed", "job", jobID, "name", att.Name, "error", perr)
			}
		}

		if !r.KeepLocal {
			if err := r.store.RemoveAttachment(ctx, jobID, att.Name); err != nil {
				slog.Warn("Failed to drop uploaded attachment", "job", jobID, "name", att.Name, "error", err)
			}
		}

		out[i] = url
	}
	return out, nil
}
