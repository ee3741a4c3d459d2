package processors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
)

const (
	gardenAddr   = "0x1111111111111111111111111111111111111111"
	gardenerAddr = "0x2222222222222222222222222222222222222222"
	operatorAddr = "0x3333333333333333333333333333333333333333"
)

// fakeClient records SendCall invocations.
type fakeClient struct {
	calls  int
	sender common.Address
	err    error
}

func (f *fakeClient) SendCall(ctx context.Context, chainID int64, sender common.Address, callData []byte) (common.Hash, error) {
	f.calls++
	f.sender = sender
	if f.err != nil {
		return common.Hash{}, f.err
	}
	return common.HexToHash("0x" + "ab"), nil
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestWorkProcessor_EncodeValid(t *testing.T) {
	p := NewWorkProcessor(nil)

	payload := mustJSON(t, job.WorkPayload{
		ActionUID: 7,
		Title:     "Cleared invasive ivy",
		Garden:    gardenAddr,
		Gardener:  gardenerAddr,
		Media:     []string{"ipfs://bafyexample"},
	})

	encoded, err := p.EncodePayload(context.Background(), payload, 42161)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(encoded, &env))
	assert.Equal(t, "greengoods.work.v1", env["schema"])
	assert.Equal(t, float64(42161), env["chain_id"])
	assert.Equal(t, "Cleared invasive ivy", env["title"])
}

func TestWorkProcessor_EncodeFailuresArePermanent(t *testing.T) {
	p := NewWorkProcessor(nil)

	tests := []struct {
		name    string
		payload job.WorkPayload
	}{
		{"missing title", job.WorkPayload{ActionUID: 1, Garden: gardenAddr, Gardener: gardenerAddr}},
		{"bad garden address", job.WorkPayload{ActionUID: 1, Title: "t", Garden: "not-an-address", Gardener: gardenerAddr}},
		{"bad gardener address", job.WorkPayload{ActionUID: 1, Title: "t", Garden: gardenAddr, Gardener: "xyz"}},
		{"negative action", job.WorkPayload{ActionUID: -1, Title: "t", Garden: gardenAddr, Gardener: gardenerAddr}},
		{"unresolvable media ref", job.WorkPayload{ActionUID: 1, Title: "t", Garden: gardenAddr, Gardener: gardenerAddr, Media: []string{"att://photo.jpg"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.EncodePayload(context.Background(), mustJSON(t, tt.payload), 1)
			require.Error(t, err)
			assert.True(t, errors.IsPermanent(err))
		})
	}
}

func TestWorkProcessor_ExecuteUsesGardenerAsSender(t *testing.T) {
	p := NewWorkProcessor(nil)
	client := &fakeClient{}

	payload := mustJSON(t, job.WorkPayload{
		ActionUID: 1, Title: "t", Garden: gardenAddr, Gardener: gardenerAddr,
	})
	encoded, err := p.EncodePayload(context.Background(), payload, 1)
	require.NoError(t, err)

	hash, err := p.Execute(context.Background(), encoded, nil, client)
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, common.HexToAddress(gardenerAddr), client.sender)
	assert.True(t, chain.IsRealTxHash(hash))
}

func TestApprovalProcessor_EncodeValid(t *testing.T) {
	p := NewApprovalProcessor()

	payload := mustJSON(t, job.ApprovalPayload{
		WorkUID:  "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789",
		Approved: true,
		Operator: operatorAddr,
		Garden:   gardenAddr,
	})

	encoded, err := p.EncodePayload(context.Background(), payload, 8453)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(encoded, &env))
	assert.Equal(t, "greengoods.approval.v1", env["schema"])
	assert.Equal(t, true, env["approved"])
}

func TestApprovalProcessor_UnsyncedWorkIsTransient(t *testing.T) {
	p := NewApprovalProcessor()

	payload := mustJSON(t, job.ApprovalPayload{
		WorkUID:  chain.OfflineTxHash("some-queued-work"),
		Approved: true,
		Operator: operatorAddr,
		Garden:   gardenAddr,
	})

	_, err := p.EncodePayload(context.Background(), payload, 1)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.False(t, errors.IsPermanent(err))
}

func TestApprovalProcessor_PermanentFailures(t *testing.T) {
	p := NewApprovalProcessor()

	tests := []struct {
		name    string
		payload job.ApprovalPayload
	}{
		{"missing work uid", job.ApprovalPayload{Operator: operatorAddr, Garden: gardenAddr}},
		{"bad operator", job.ApprovalPayload{WorkUID: "0x1", Operator: "nope", Garden: gardenAddr}},
		{"bad garden", job.ApprovalPayload{WorkUID: "0x1", Operator: operatorAddr, Garden: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.EncodePayload(context.Background(), mustJSON(t, tt.payload), 1)
			require.Error(t, err)
			assert.True(t, errors.IsPermanent(err))
		})
	}
}
