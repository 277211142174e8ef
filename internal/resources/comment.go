package resources

import (
	"time"

	"github.com/pmbridge/mediation-server/internal/upstream"
)

// Comment is the canonical projection of an upstream comment node.
type Comment struct {
	ID    string `json:"id"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Issue struct {
		ID         string `json:"id"`
		Identifier string `json:"identifier"`
	} `json:"issue"`
	User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommentSelection is the fixed selection set for comment queries.
const CommentSelection = `
	id body url
	issue { id identifier }
	user { id name }
	createdAt updatedAt
`

// CommentFieldAliases maps DSL field names to upstream filter paths.
var CommentFieldAliases = FieldAliases{
	"body":      "body",
	"issue":     "issue.identifier",
	"user":      "user.name",
	"createdAt": "createdAt",
	"updatedAt": "updatedAt",
}

// ToSearchResult projects a Comment into the common SearchResult shape.
func (c Comment) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           c.ID,
		ResourceType: TypeComment,
		Title:        c.Body,
		URL:          c.URL,
		Description:  c.Body,
		Identifier:   c.Issue.Identifier,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		AdditionalData: map[string]any{
			"author": c.User.Name,
		},
	}
}

// NewCommentClient builds the comment resource client.
func NewCommentClient(up *upstream.Client) *Client[Comment] {
	return NewClient[Comment](up, TypeComment, "comments", "comment", CommentSelection, CommentFieldAliases)
}
