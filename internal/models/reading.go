package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadingKind names the feature that produced a reading.
type ReadingKind string

const (
	ReadingKindTarot      ReadingKind = "tarot"
	ReadingKindPalm       ReadingKind = "palm"
	ReadingKindFace       ReadingKind = "face"
	ReadingKindNumerology ReadingKind = "numerology"
)

// Reading is one completed reading stored in MongoDB for history views.
// Payload carries the kind-specific result as returned to the client.
type Reading struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ReadingID string             `bson:"reading_id" json:"id"`
	ClientID  string             `bson:"client_id" json:"-"`
	Kind      ReadingKind        `bson:"kind" json:"kind"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	Payload   interface{}        `bson:"payload" json:"payload"`
}
