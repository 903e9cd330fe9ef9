package account

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/z-tavern/client/internal/model/auth"
)

// User is a backend account with its hashed password and role.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash []byte    `json:"-"`
	Active       bool      `json:"is_active"`
	Role         auth.Role `json:"role"`
}

// CheckPassword compares password against the stored bcrypt hash.
func (u User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}

// Identity projects the account onto the record returned by /users/me.
func (u User) Identity() auth.Identity {
	role := u.Role
	perms := make(map[string]bool, len(role.Permissions))
	for k, v := range role.Permissions {
		perms[k] = v
	}
	role.Permissions = perms
	return auth.Identity{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     &role,
	}
}

// NewUser hashes password and returns an active account.
func NewUser(id, username, email, fullName, password string, role auth.Role) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return User{
		ID:           id,
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		Active:       true,
		Role:         role,
	}, nil
}

// Roles available to seeded accounts.
var (
	RoleViewer = auth.Role{Name: "viewer", Permissions: map[string]bool{"read": true, "chat": false}}
	RoleMember = auth.Role{Name: "member", Permissions: map[string]bool{"read": true, "chat": true}}
	RoleAdmin  = auth.Role{Name: "admin", Permissions: map[string]bool{"read": true, "write": true, "chat": true, "admin": true}}
)

// Seed provides the development accounts served by the reference backend.
func Seed() []User {
	seeds := []struct {
		id, username, email, fullName, password string
		role                                    auth.Role
	}{
		{"1", "alice", "alice@z-tavern.local", "Alice Liddell", "wonderland", RoleMember},
		{"2", "admin", "admin@z-tavern.local", "Tavern Keeper", "tavern-admin", RoleAdmin},
		{"3", "guest", "guest@z-tavern.local", "Wandering Guest", "guest", RoleViewer},
	}

	users := make([]User, 0, len(seeds))
	for _, s := range seeds {
		u, err := NewUser(s.id, s.username, s.email, s.fullName, s.password, s.role)
		if err != nil {
			panic(err)
		}
		users = append(users, u)
	}
	return users
}
