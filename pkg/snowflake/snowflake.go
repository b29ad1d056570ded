// Package snowflake provides helpers for Accord's 64-bit identifiers.
//
// A snowflake encodes its creation time in the high bits: the milliseconds
// elapsed since the Accord epoch, shifted left by 18. The low 18 bits carry
// worker/sequence/model metadata. Because the timestamp dominates the value,
// snowflakes sort chronologically and double as implicit timestamps.
package snowflake

import (
	"time"
)

// EpochMillis is the Accord epoch in Unix milliseconds.
const EpochMillis int64 = 1_671_926_400_000

// TimestampShift is the number of low bits below the timestamp field.
const TimestampShift = 18

// Boundary is the snowflake delta corresponding to roughly 15 minutes of
// elapsed time. Two messages whose IDs differ by more than this start a new
// message group.
const Boundary uint64 = 235_929_600_000

// ID is a 64-bit Accord identifier.
type ID = uint64

// ModelType identifies the kind of entity a snowflake was minted for.
// It occupies the lowest 5 bits of the ID.
type ModelType uint64

const (
	ModelGuild ModelType = iota
	ModelUser
	ModelChannel
	ModelMessage
	ModelAttachment
	ModelRole
	ModelInternal
	ModelUnknown = ModelType(31)
)

// Timestamp returns the creation time encoded in id.
func Timestamp(id ID) time.Time {
	millis := int64(id>>TimestampShift) + EpochMillis
	return time.UnixMilli(millis)
}

// FromTime returns the smallest snowflake whose timestamp is t.
// Useful as a pagination cursor or comparison bound.
func FromTime(t time.Time) ID {
	return uint64(t.UnixMilli()-EpochMillis) << TimestampShift
}

// New mints a snowflake for time t with the given low-bit sequence and
// model type. Client-minted IDs only ever serve as local placeholders;
// authoritative IDs come from the server.
func New(t time.Time, seq uint64, mt ModelType) ID {
	return FromTime(t) | (seq&0x1fff)<<5 | uint64(mt)
}

// WithModelType returns id with its model-type bits replaced.
// A guild's default (everyone) role shares the guild's timestamp bits and
// differs only in model type, so the role ID is derived rather than stored.
func WithModelType(id ID, mt ModelType) ID {
	return id&^uint64(31) | uint64(mt)
}

// Model returns the model-type bits of id.
func Model(id ID) ModelType {
	return ModelType(id & 31)
}

// SameDay reports whether a and b fall on the same calendar day in UTC.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// HumanDate formats t the way date dividers are labeled, e.g. "March 4, 2026".
func HumanDate(t time.Time) string {
	return t.UTC().Format("January 2, 2006")
}
