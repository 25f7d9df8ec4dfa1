package model

import "time"

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

const (
	// ParentLimit caps incoming PARENT_OF edges per person.
	ParentLimit = 2
	// SpouseLimit caps SPOUSE_OF pairings per person.
	SpouseLimit = 1
)

const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

type Person struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Gender       Gender    `json:"gender,omitempty"`
	BirthDate    string    `json:"birthDate,omitempty"`
	DeathDate    string    `json:"deathDate,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	CreatedBy    string    `json:"createdBy,omitempty"`
}

type Family struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
