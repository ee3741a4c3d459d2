package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// BundlerClient submits sponsored calls through a bundler RPC endpoint.
// The bundler wraps the call in a user operation, pays gas through the
// paymaster, and returns the hash once the operation is included.
type BundlerClient struct {
	rpc *rpc.Client
}

type sponsoredCall struct {
	ChainID  hexutil.Uint64 `json:"chainId"`
	Sender   common.Address `json:"sender"`
	CallData hexutil.Bytes  `json:"callData"`
}

// DialBundler connects to the bundler endpoint.
func DialBundler(ctx context.Context, url string) (*BundlerClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial bundler: %w", err)
	}
	return &BundlerClient{rpc: c}, nil
}

// SendCall implements SmartAccountClient.
func (c *BundlerClient) SendCall(ctx context.Context, chainID int64, sender common.Address, callData []byte) (common.Hash, error) {
	var hash common.Hash
	err := c.rpc.CallContext(ctx, &hash, "gg_sendSponsoredCall", sponsoredCall{
		ChainID:  hexutil.Uint64(chainID),
		Sender:   sender,
		CallData: callData,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// Close releases the underlying connection.
func (c *BundlerClient) Close() {
	c.rpc.Close()
}
