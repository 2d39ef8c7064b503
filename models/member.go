package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultRank is assigned to members that have not been promoted yet.
const DefaultRank = "Associate"

// Member is a node of the sponsorship tree. The tree edge is SponsorID;
// children are found by querying on sponsorId rather than stored on the parent.
type Member struct {
	ID        primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	SponsorID *primitive.ObjectID `json:"sponsorId,omitempty" bson:"sponsorId,omitempty"`
	Username  string              `json:"username" bson:"username"`
	FullName  string              `json:"fullName" bson:"fullName"`
	Email     string              `json:"email" bson:"email"`
	UserType  string              `json:"userType" bson:"userType"`
	Rank      string              `json:"rank" bson:"rank"`
	IsActive  bool                `json:"isActive" bson:"isActive"`
	FCMToken  string              `json:"-" bson:"fcmToken,omitempty"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// CurrentRank returns the member's rank, falling back to DefaultRank.
func (m *Member) CurrentRank() string {
	if m.Rank == "" {
		return DefaultRank
	}
	return m.Rank
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
