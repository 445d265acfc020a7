package fetch

import (
	"context"
	"fmt"

	"ambrosial/internal/model"
)

// AccountInfo is the subset of the profile the rest of the system reads.
type AccountInfo struct {
	CustomerID     string `json:"customer_id"`
	Name           string `json:"name"`
	Mobile         string `json:"mobile"`
	Email          string `json:"email"`
	EmailVerified  bool   `json:"emailVerified"`
	SuperStatus    string `json:"super_status"`
	UserRegistered bool   `json:"user_registered"`
}

// FetchAccountInfo reads the profile endpoint with the same validation as an
// order page.
func (c *Client) FetchAccountInfo(ctx context.Context, s Session) (AccountInfo, error) {
	data, err := c.get(ctx, s, c.profileURL, 0)
	if err != nil {
		return AccountInfo{}, err
	}
	var m map[string]any
	if err := decode(data, &m); err != nil {
		return AccountInfo{}, &TransportError{URL: c.profileURL, Err: fmt.Errorf("decode profile: %w", err)}
	}
	verified, err := model.AsBool(m["emailVerified"])
	if err != nil {
		return AccountInfo{}, fmt.Errorf("profile emailVerified: %w", err)
	}
	registered, err := model.AsBool(m["user_registered"])
	if err != nil {
		return AccountInfo{}, fmt.Errorf("profile user_registered: %w", err)
	}
	super := model.Map(model.Map(model.Map(m["optional_map"])["IS_SUPER"])["value"])
	return AccountInfo{
		CustomerID:     model.AsString(m["customer_id"]),
		Name:           model.AsString(m["name"]),
		Mobile:         model.AsString(m["mobile"]),
		Email:          model.AsString(m["email"]),
		EmailVerified:  verified,
		SuperStatus:    model.AsString(super["superStatus"]),
		UserRegistered: registered,
	}, nil
}
