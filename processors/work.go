// Package processors implements the encode/execute pairs for the job
// kinds the queue replays on-chain.
package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/greengoods/gardenqueue/attachments"
	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
	"github.com/greengoods/gardenqueue/registry"
)

// workSchema tags the encoded envelope submitted to the garden registry.
const workSchema = "greengoods.work.v1"

// workEnvelope is the canonical call body for a work attestation.
// Field order is fixed so encoding is deterministic.
type workEnvelope struct {
	Schema    string   `json:"schema"`
	ChainID   int64    `json:"chain_id"`
	ActionUID int      `json:"action_uid"`
	Title     string   `json:"title"`
	Feedback  string   `json:"feedback,omitempty"`
	Garden    string   `json:"garden"`
	Gardener  string   `json:"gardener"`
	Media     []string `json:"media,omitempty"`
}

// WorkProcessor encodes and submits garden work attestations. Media
// references are resolved to remote content URLs during encoding, so
// an unresolvable reference fails permanently before any submission.
type WorkProcessor struct {
	resolver *attachments.Resolver
}

// NewWorkProcessor creates the processor. A nil resolver is allowed
// when all media is already content-addressed.
func NewWorkProcessor(resolver *attachments.Resolver) *WorkProcessor {
	return &WorkProcessor{resolver: resolver}
}

// Kind implements registry.Processor.
func (p *WorkProcessor) Kind() job.Kind { return job.KindWork }

// EncodePayload validates the work submission and produces the call
// body. All failures here are permanent: identical input re-encodes
// identically.
func (p *WorkProcessor) EncodePayload(ctx context.Context, payload json.RawMessage, chainID int64) ([]byte, error) {
	var w job.WorkPayload
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, errors.NewPermanent("encode_work", fmt.Errorf("decode payload: %w", err))
	}
	if w.Title == "" {
		return nil, errors.NewPermanent("encode_work", errors.New("work title is required"))
	}
	if w.ActionUID < 0 {
		return nil, errors.NewPermanent("encode_work", errors.New("action uid must not be negative"))
	}
	if !common.IsHexAddress(w.Garden) {
		return nil, errors.NewPermanent("encode_work", fmt.Errorf("invalid garden address %q", w.Garden))
	}
	if !common.IsHexAddress(w.Gardener) {
		return nil, errors.NewPermanent("encode_work", fmt.Errorf("invalid gardener address %q", w.Gardener))
	}

	media := w.Media
	if p.resolver != nil {
		resolved, err := p.resolver.Resolve(ctx, registry.JobIDFromContext(ctx), w.Media)
		if err != nil {
			if errors.IsTransient(err) {
				return nil, err
			}
			return nil, errors.NewPermanent("encode_work", err)
		}
		media = resolved
	} else {
		for _, m := range w.Media {
			if attachments.IsRef(m) {
				return nil, errors.NewPermanent("encode_work",
					fmt.Errorf("media reference %q cannot be resolved without an uploader", m))
			}
		}
	}

	return json.Marshal(workEnvelope{
		Schema:    workSchema,
		ChainID:   chainID,
		ActionUID: w.ActionUID,
		Title:     w.Title,
		Feedback:  w.Feedback,
		Garden:    common.HexToAddress(w.Garden).Hex(),
		Gardener:  common.HexToAddress(w.Gardener).Hex(),
		Media:     media,
	})
}

// Execute submits the encoded work through the smart-account client.
func (p *WorkProcessor) Execute(ctx context.Context, encoded []byte, meta map[string]any, client chain.SmartAccountClient) (string, error) {
	var env workEnvelope
	if err := json.Unmarshal(encoded, &env); err != nil {
		return "", errors.NewPermanent("execute_work", fmt.Errorf("decode envelope: %w", err))
	}

	hash, err := client.SendCall(ctx, env.ChainID, common.HexToAddress(env.Gardener), encoded)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}
