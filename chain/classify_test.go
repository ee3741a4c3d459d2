package chain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greengoods/gardenqueue/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		errorType string
	}{
		{
			name:      "typed permanent",
			err:       errors.NewPermanent("encode", fmt.Errorf("bad media reference")),
			retryable: false,
			errorType: "permanent",
		},
		{
			name:      "typed transient",
			err:       errors.NewTransient("execute", fmt.Errorf("bundler unavailable")),
			retryable: true,
			errorType: "transient",
		},
		{
			name:      "storage quota",
			err:       errors.NewQuota("redis", fmt.Errorf("OOM")),
			retryable: false,
			errorType: "storage_quota",
		},
		{
			name:      "connection refused",
			err:       fmt.Errorf("dial tcp: connection refused"),
			retryable: true,
			errorType: "network_error",
		},
		{
			name:      "deadline exceeded",
			err:       fmt.Errorf("context deadline exceeded"),
			retryable: true,
			errorType: "network_error",
		},
		{
			name:      "rate limited",
			err:       fmt.Errorf("429 too many requests"),
			retryable: true,
			errorType: "rate_limited",
		},
		{
			name:      "nonce conflict",
			err:       fmt.Errorf("replacement transaction underpriced"),
			retryable: true,
			errorType: "nonce_error",
		},
		{
			name:      "reverted",
			err:       fmt.Errorf("execution reverted: GardenAccount: not a gardener"),
			retryable: false,
			errorType: "contract_error",
		},
		{
			name:      "paymaster rejection",
			err:       fmt.Errorf("paymaster rejected user operation"),
			retryable: false,
			errorType: "sponsorship_error",
		},
		{
			name:      "unknown leans retryable",
			err:       fmt.Errorf("something odd happened"),
			retryable: true,
			errorType: "unknown_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errorType := Classify(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.errorType, errorType)
		})
	}
}

func TestHumanize(t *testing.T) {
	assert.Contains(t, Humanize(fmt.Errorf("permission denied for attester")), "garden access")
	assert.Contains(t, Humanize(errors.NewQuota("redis", fmt.Errorf("full"))), "storage")
	assert.Contains(t, Humanize(errors.ErrRetryBudget), "resubmit")
	assert.Contains(t, Humanize(fmt.Errorf("network is unreachable")), "offline")
	assert.Empty(t, Humanize(nil))
}
