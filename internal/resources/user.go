package resources

import (
	"time"

	"github.com/pmbridge/mediation-server/internal/upstream"
)

// User is the canonical projection of an upstream user node.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserSelection is the fixed selection set for user queries.
const UserSelection = `id name displayName email active createdAt updatedAt`

// UserFieldAliases maps DSL field names to upstream filter paths.
var UserFieldAliases = FieldAliases{
	"name":        "name",
	"displayName": "displayName",
	"email":       "email",
	"active":      "active",
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
}

// ToSearchResult projects a User into the common SearchResult shape.
func (u User) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           u.ID,
		ResourceType: TypeUser,
		Title:        u.DisplayName,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		AdditionalData: map[string]any{
			"email":  u.Email,
			"active": u.Active,
		},
	}
}

// NewUserClient builds the user resource client.
func NewUserClient(up *upstream.Client) *Client[User] {
	return NewClient[User](up, TypeUser, "users", "user", UserSelection, UserFieldAliases)
}
