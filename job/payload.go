package job

import "encoding/json"

// WorkPayload is a garden work submission. Media entries are either
// content identifiers (ipfs:// or https:// URLs) or attachment references
// (att://<name>) pointing at blobs stored alongside the job.
type WorkPayload struct {
	ActionUID int      `json:"action_uid"`
	Title     string   `json:"title"`
	Feedback  string   `json:"feedback,omitempty"`
	Garden    string   `json:"garden"`
	Gardener  string   `json:"gardener"`
	Media     []string `json:"media,omitempty"`
}

// ApprovalPayload is an operator decision on a submitted work.
type ApprovalPayload struct {
	WorkUID  string `json:"work_uid"`
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
	Operator string `json:"operator"`
	Garden   string `json:"garden"`
}

// CachedWork is a denormalized projection of a pending or synced work
// submission so consumers can render offline items alongside confirmed
// on-chain ones without waiting for indexer confirmation.
type CachedWork struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	ActionUID int      `json:"action_uid"`
	Garden    string   `json:"garden"`
	Gardener  string   `json:"gardener"`
	Media     []string `json:"media,omitempty"`
	Status    Status   `json:"status"`
	TxHash    string   `json:"tx_hash,omitempty"`
}

// ProjectCachedWork builds the read model for a work job. The second
// return is false for non-work jobs or undecodable payloads.
func ProjectCachedWork(j Job) (CachedWork, bool) {
	if j.Kind != KindWork {
		return CachedWork{}, false
	}
	var p WorkPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return CachedWork{}, false
	}
	return CachedWork{
		ID:        j.ID,
		Title:     p.Title,
		ActionUID: p.ActionUID,
		Garden:    p.Garden,
		Gardener:  p.Gardener,
		Media:     p.Media,
		Status:    j.Status,
		TxHash:    j.TxHash,
	}, true
}
