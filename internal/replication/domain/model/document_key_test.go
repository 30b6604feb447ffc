package model

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDocumentKey_CanonicalForms(t *testing.T) {
	oid := primitive.NewObjectID()

	tests := []struct {
		name string
		a, b interface{}
		same bool
	}{
		{name: "object id vs hex string", a: oid, b: oid.Hex(), same: true},
		{name: "object id vs upper hex", a: oid, b: strings.ToUpper(oid.Hex()), same: true},
		{name: "pointer object id", a: &oid, b: oid, same: true},
		{name: "int vs int64", a: 7, b: int64(7), same: true},
		{name: "int vs integral float", a: 7, b: float64(7), same: true},
		{name: "int vs string", a: 7, b: "7", same: true},
		{name: "different ids", a: "bill-1", b: "bill-2", same: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, NewDocumentKey(tt.a).Equal(NewDocumentKey(tt.b)))
		})
	}
}

func TestDocumentKey_KeepsNativeValue(t *testing.T) {
	oid := primitive.NewObjectID()
	k := NewDocumentKey(oid)
	assert.Equal(t, oid, k.Value())
	assert.Equal(t, oid.Hex(), k.String())
}

func TestDocumentKey_EmbeddedTime(t *testing.T) {
	created := time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC)
	oid := primitive.NewObjectIDFromTimestamp(created)

	got, ok := NewDocumentKey(oid).EmbeddedTime()
	require.True(t, ok)
	assert.True(t, created.Equal(got))

	got, ok = NewDocumentKey(oid.Hex()).EmbeddedTime()
	require.True(t, ok)
	assert.True(t, created.Equal(got))

	v7, err := uuid.NewV7()
	require.NoError(t, err)
	got, ok = NewDocumentKey(v7).EmbeddedTime()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), got, time.Minute)

	_, ok = NewDocumentKey(uuid.New()).EmbeddedTime()
	assert.False(t, ok, "random v4 uuids carry no time")

	_, ok = NewDocumentKey("table-12").EmbeddedTime()
	assert.False(t, ok)

	_, ok = NewDocumentKey(42).EmbeddedTime()
	assert.False(t, ok)
}

func TestDocumentKey_BinaryUUID(t *testing.T) {
	u := uuid.New()
	bin := primitive.Binary{Subtype: 0x04, Data: u[:]}
	assert.True(t, NewDocumentKey(bin).Equal(NewDocumentKey(u.String())))
}

func TestKeySet_DifferenceAndIntersection(t *testing.T) {
	oid := primitive.NewObjectID()
	source := NewKeySet(NewDocumentKey(oid), NewDocumentKey(1), NewDocumentKey(2))
	dest := NewKeySet(NewDocumentKey(oid.Hex()), NewDocumentKey(int64(1)), NewDocumentKey(3))

	missing := source.Difference(dest)
	require.Len(t, missing, 1)
	assert.Equal(t, "2", missing[0].String())

	common := source.Intersection(dest)
	require.Len(t, common, 2)
	for _, k := range common {
		native, ok := source.Get(k)
		require.True(t, ok)
		assert.Equal(t, native.Value(), k.Value(), "intersection keeps the receiver's native values")
	}

	destNative, ok := dest.Get(NewDocumentKey(oid))
	require.True(t, ok)
	assert.Equal(t, oid.Hex(), destNative.Value())
}

func TestKeySet_AddDeduplicates(t *testing.T) {
	set := NewKeySet(NewDocumentKey(5), NewDocumentKey("5"))
	assert.Len(t, set, 1)
	assert.True(t, set.Has(NewDocumentKey(int64(5))))
	assert.Equal(t, 5, set.Keys()[0].Value())
}
