package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
)

// stubProcessor is a minimal Processor for registry tests.
type stubProcessor struct {
	kind job.Kind
}

func (s *stubProcessor) Kind() job.Kind { return s.kind }

func (s *stubProcessor) EncodePayload(ctx context.Context, payload json.RawMessage, chainID int64) ([]byte, error) {
	return nil, nil
}

func (s *stubProcessor) Execute(ctx context.Context, encoded []byte, meta map[string]any, client chain.SmartAccountClient) (string, error) {
	return "", nil
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name      string
		processor Processor
		expectErr error
	}{
		{
			name:      "valid registration",
			processor: &stubProcessor{kind: job.KindWork},
			expectErr: nil,
		},
		{
			name:      "empty kind",
			processor: &stubProcessor{kind: ""},
			expectErr: errors.ErrEmptyKind,
		},
		{
			name:      "nil processor",
			processor: nil,
			expectErr: errors.ErrNilProcessor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()

			err := reg.Register(tt.processor)

			if tt.expectErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				require.NoError(t, err)

				p, found := reg.Get(tt.processor.Kind())
				assert.True(t, found)
				assert.NotNil(t, p)
			}
		})
	}
}

func TestRegistry_BasicOperations(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(&stubProcessor{kind: job.KindWork}))
	require.NoError(t, reg.Register(&stubProcessor{kind: job.KindApproval}))

	_, found := reg.Get(job.KindWork)
	assert.True(t, found)

	_, found = reg.Get(job.Kind("planting"))
	assert.False(t, found)
	assert.False(t, reg.Has(job.Kind("planting")))

	kinds := reg.Kinds()
	assert.Len(t, kinds, 2)
	assert.Contains(t, kinds, job.KindWork)
	assert.Contains(t, kinds, job.KindApproval)

	reg.Remove(job.KindWork)
	assert.False(t, reg.Has(job.KindWork))
	assert.Len(t, reg.Kinds(), 1)

	reg.Clear()
	assert.Empty(t, reg.Kinds())
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := NewRegistry()

	first := &stubProcessor{kind: job.KindWork}
	second := &stubProcessor{kind: job.KindWork}

	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second))

	p, found := reg.Get(job.KindWork)
	require.True(t, found)
	assert.Same(t, second, p)
}
