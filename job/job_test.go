package job

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatches(t *testing.T) {
	j := Job{ID: "1", Kind: KindWork, Status: StatusQueued, Sender: "alice", Synced: false}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty matches everything", Filter{}, true},
		{"kind match", Filter{Kind: KindWork}, true},
		{"kind mismatch", Filter{Kind: KindApproval}, false},
		{"status match", Filter{Status: StatusQueued}, true},
		{"status mismatch", Filter{Status: StatusCompleted}, false},
		{"sender match", Filter{Sender: "alice"}, true},
		{"sender mismatch", Filter{Sender: "bob"}, false},
		{"synced match", Filter{Synced: Bool(false)}, true},
		{"synced mismatch", Filter{Synced: Bool(true)}, false},
		{"combined", Filter{Kind: KindWork, Sender: "alice", Synced: Bool(false)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(j))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, Job{Status: StatusQueued}.Terminal())
	assert.False(t, Job{Status: StatusProcessing}.Terminal())
	assert.False(t, Job{Status: StatusRetrying}.Terminal())
	assert.True(t, Job{Status: StatusCompleted}.Terminal())
	assert.True(t, Job{Status: StatusFailed}.Terminal())
}

func TestProjectCachedWork(t *testing.T) {
	payload, err := json.Marshal(WorkPayload{
		ActionUID: 4,
		Title:     "Mulched the beds",
		Garden:    "0x1111111111111111111111111111111111111111",
		Gardener:  "0x2222222222222222222222222222222222222222",
		Media:     []string{"ipfs://bafyabc"},
	})
	require.NoError(t, err)

	cw, ok := ProjectCachedWork(Job{
		ID:      "j1",
		Kind:    KindWork,
		Payload: payload,
		Status:  StatusQueued,
		TxHash:  "0xoffline-abc",
	})
	require.True(t, ok)
	assert.Equal(t, "j1", cw.ID)
	assert.Equal(t, "Mulched the beds", cw.Title)
	assert.Equal(t, 4, cw.ActionUID)
	assert.Equal(t, StatusQueued, cw.Status)
	assert.Equal(t, "0xoffline-abc", cw.TxHash)

	_, ok = ProjectCachedWork(Job{ID: "j2", Kind: KindApproval, Payload: payload})
	assert.False(t, ok)

	_, ok = ProjectCachedWork(Job{ID: "j3", Kind: KindWork, Payload: json.RawMessage("{broken")})
	assert.False(t, ok)
}
