package owl

import (
	"github.com/ethereum/go-ethereum/common"
)

// User is a project user with its managed smart account.
type User struct {
	ID          string         `json:"id,omitempty"`
	Email       string         `json:"email,omitempty"`
	ExternalID  string         `json:"externalId,omitempty"`
	SafeAddress common.Address `json:"safeAddress"`
}

// CreateUserRequest creates or updates a project user. Exactly one of
// Email and ExternalID identifies the user.
type CreateUserRequest struct {
	Email      string `json:"email,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

// GetUserRequest looks up a project user.
type GetUserRequest struct {
	ChainID    uint64 `json:"chainId"`
	Email      string `json:"email,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

// DeployCollectionRequest deploys an ERC-721 collection.
type DeployCollectionRequest struct {
	ChainID uint64 `json:"chainId"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Collection is a deployed collection.
type Collection struct {
	ContractAddress common.Address `json:"contractAddress"`
}

// Metadata is ERC-721 token metadata.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// MintBatchRequest mints one auto-id token to each recipient. Recipients
// may be addresses or user emails.
type MintBatchRequest struct {
	ChainID  uint64         `json:"chainId"`
	Address  common.Address `json:"address"`
	To       []string       `json:"to"`
	Metadata *Metadata      `json:"metadata,omitempty"`
}
