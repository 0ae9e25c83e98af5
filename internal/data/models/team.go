package models

import "encoding/json"

// Team identifies an organization team.
type Team struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`

	Raw json.RawMessage `json:"-"`
}

// TeamPermission is the access a team holds on a repository.
type TeamPermission struct {
	Admin bool `json:"admin"`
	Push  bool `json:"push"`
}

// TeamRepository is one entry of a team's repository listing: the repository
// metadata as returned by the listing plus the team's permissions on it.
type TeamRepository struct {
	Repository
	Permissions *TeamPermission `json:"permissions,omitempty"`
}
