package account

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdAccount is a linked ad account. Rules snapshot {account id, token}
// pairs from here when they are authored.
type AdAccount struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AccountID string             `json:"account_id" bson:"account_id"` // "act_..." Graph API id
	Name      string             `json:"name" bson:"name"`
	Token     string             `json:"token" bson:"token"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}
