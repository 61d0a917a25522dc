package owl

import (
	"context"
	"fmt"
)

// DeployCollection deploys an ERC-721 collection.
func (c *Client) DeployCollection(ctx context.Context, req *DeployCollectionRequest) (*Collection, error) {
	var out Collection
	if err := c.Mutate(ctx, "collection.deploy", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MintBatch mints auto-id ERC-721 tokens.
func (c *Client) MintBatch(ctx context.Context, req *MintBatchRequest) error {
	if len(req.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	return c.Mutate(ctx, "collection.erc721AutoId.mintBatch", req, nil)
}
