package owl

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateOrSetUser creates a project user or returns the existing one.
func (c *Client) CreateOrSetUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if (req.Email == "") == (req.ExternalID == "") {
		return nil, fmt.Errorf("exactly one of email and external id is required")
	}
	var user User
	if err := c.Mutate(ctx, "projectUser.createOrSet", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateManagedUser creates a user keyed by a fresh external ID. Callers
// that need idempotency should keep the returned ExternalID and pass it to
// CreateOrSetUser on retry.
func (c *Client) CreateManagedUser(ctx context.Context) (*User, error) {
	return c.CreateOrSetUser(ctx, &CreateUserRequest{ExternalID: uuid.NewString()})
}

// GetUser returns an existing project user.
func (c *Client) GetUser(ctx context.Context, req *GetUserRequest) (*User, error) {
	var user User
	if err := c.Query(ctx, "projectUser.get", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
