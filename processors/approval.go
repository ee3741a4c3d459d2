package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
)

const approvalSchema = "greengoods.approval.v1"

type approvalEnvelope struct {
	Schema   string `json:"schema"`
	ChainID  int64  `json:"chain_id"`
	WorkUID  string `json:"work_uid"`
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
	Operator string `json:"operator"`
	Garden   string `json:"garden"`
}

// ApprovalProcessor encodes and submits operator decisions on works.
type ApprovalProcessor struct{}

// NewApprovalProcessor creates the processor.
func NewApprovalProcessor() *ApprovalProcessor { return &ApprovalProcessor{} }

// Kind implements registry.Processor.
func (p *ApprovalProcessor) Kind() job.Kind { return job.KindApproval }

// EncodePayload validates the approval and produces the call body.
func (p *ApprovalProcessor) EncodePayload(ctx context.Context, payload json.RawMessage, chainID int64) ([]byte, error) {
	var a job.ApprovalPayload
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, errors.NewPermanent("encode_approval", fmt.Errorf("decode payload: %w", err))
	}
	if a.WorkUID == "" {
		return nil, errors.NewPermanent("encode_approval", errors.New("work uid is required"))
	}
	if chain.IsOfflineTxHash(a.WorkUID) {
		// An approval may reference a work that is itself still queued;
		// it can only be encoded once the work has a real UID.
		return nil, errors.NewTransient("encode_approval",
			fmt.Errorf("work %s has not been synced yet", a.WorkUID))
	}
	if !common.IsHexAddress(a.Operator) {
		return nil, errors.NewPermanent("encode_approval", fmt.Errorf("invalid operator address %q", a.Operator))
	}
	if !common.IsHexAddress(a.Garden) {
		return nil, errors.NewPermanent("encode_approval", fmt.Errorf("invalid garden address %q", a.Garden))
	}

	return json.Marshal(approvalEnvelope{
		Schema:   approvalSchema,
		ChainID:  chainID,
		WorkUID:  a.WorkUID,
		Approved: a.Approved,
		Feedback: a.Feedback,
		Operator: common.HexToAddress(a.Operator).Hex(),
		Garden:   common.HexToAddress(a.Garden).Hex(),
	})
}

// Execute submits the encoded approval through the smart-account client.
func (p *ApprovalProcessor) Execute(ctx context.Context, encoded []byte, meta map[string]any, client chain.SmartAccountClient) (string, error) {
	var env approvalEnvelope
	if err := json.Unmarshal(encoded, &env); err != nil {
		return "", errors.NewPermanent("execute_approval", fmt.Errorf("decode envelope: %w", err))
	}

	hash, err := client.SendCall(ctx, env.ChainID, common.HexToAddress(env.Operator), encoded)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}
