package settings

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SettingsType string

const (
	// SettingsScheduler holds the global scheduler pause flag
	SettingsScheduler SettingsType = "scheduler"
)

type Settings struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type            SettingsType       `json:"type" bson:"type"`
	SchedulerPaused bool               `json:"scheduler_paused" bson:"scheduler_paused"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}
