package entity

import (
	"testing"

	"github.com/google/uuid"
)

func TestIsOwner(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	var nilPost *Post

	tests := []struct {
		name      string
		resource  Owned
		requester uuid.UUID
		want      bool
	}{
		{"post owner", &Post{UserID: owner}, owner, true},
		{"post other user", &Post{UserID: owner}, other, false},
		{"comment owner", &Comment{UserID: owner}, owner, true},
		{"comment other user", &Comment{UserID: owner}, other, false},
		{"nil requester", &Post{UserID: uuid.Nil}, uuid.Nil, false},
		{"nil resource", nil, owner, false},
		{"typed nil post", nilPost, owner, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOwner(tt.resource, tt.requester); got != tt.want {
				t.Errorf("IsOwner() = %v, want %v", got, tt.want)
			}
		})
	}
}
