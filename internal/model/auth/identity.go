package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role groups the permission flags granted to a user.
type Role struct {
	Name        string          `json:"name,omitempty"`
	Permissions map[string]bool `json:"permissions,omitempty"`
}

// Identity is the user record resolved by the identity-verification call.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     *Role  `json:"role,omitempty"`
}

// UnmarshalJSON accepts the id as either a JSON string or a JSON number.
// Backends keyed by integer rows send the latter.
func (i *Identity) UnmarshalJSON(data []byte) error {
	type plain Identity
	aux := struct {
		ID json.RawMessage `json:"id"`
		*plain
	}{plain: (*plain)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := parseID(aux.ID)
	if err != nil {
		return err
	}
	i.ID = id
	return nil
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("identity id: %w", err)
	}
	return n.String(), nil
}

// HasPermission reports the stored flag for name. A missing role or an absent
// permission resolves to false.
func (i Identity) HasPermission(name string) bool {
	if i.Role == nil {
		return false
	}
	return i.Role.Permissions[name]
}

// Clone returns a copy whose permission map is not shared with i.
func (i Identity) Clone() Identity {
	if i.Role == nil {
		return i
	}
	role := *i.Role
	if i.Role.Permissions != nil {
		role.Permissions = make(map[string]bool, len(i.Role.Permissions))
		for k, v := range i.Role.Permissions {
			role.Permissions[k] = v
		}
	}
	i.Role = &role
	return i
}

// Credentials is the credential-exchange request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the credential-exchange response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}
