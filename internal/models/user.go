package models

import "time"

// User matches the document in the users collection. Role is free text matched
// by substring ("Inventory Manager" satisfies a "manager" gate).
type User struct {
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	Role         string    `bson:"role" json:"role"`
	PasswordHash string    `bson:"passwordHash" json:"passwordHash,omitempty"`
	Department   string    `bson:"department" json:"department"`
	CreatedBy    string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
