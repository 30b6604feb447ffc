package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentKey is a document identifier as read from one store. The native value is
// kept so the store can be addressed with its own representation, while String()
// gives the canonical form used to match records across stores.
type DocumentKey struct {
	value     interface{}
	canonical string
}

// NewDocumentKey wraps a store-native identifier.
func NewDocumentKey(value interface{}) DocumentKey {
	return DocumentKey{value: value, canonical: canonicalize(value)}
}

// Value returns the store-native identifier.
func (k DocumentKey) Value() interface{} {
	return k.value
}

// String returns the canonical string form.
func (k DocumentKey) String() string {
	return k.canonical
}

// Equal reports whether both keys identify the same logical record.
func (k DocumentKey) Equal(other DocumentKey) bool {
	return k.canonical == other.canonical
}

// EmbeddedTime extracts the creation time carried by sortable identifier formats
// (ObjectIDs and time-based UUIDs). ok is false for any other format.
func (k DocumentKey) EmbeddedTime() (t time.Time, ok bool) {
	switch v := k.value.(type) {
	case primitive.ObjectID:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.Timestamp(), true
	case string:
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			return oid.Timestamp(), true
		}
		if u, err := uuid.Parse(v); err == nil {
			return uuidTime(u)
		}
	case uuid.UUID:
		return uuidTime(v)
	case primitive.Binary:
		if u, ok := binaryUUID(v); ok {
			return uuidTime(u)
		}
	}
	return time.Time{}, false
}

func uuidTime(u uuid.UUID) (time.Time, bool) {
	switch u.Version() {
	case 1, 6, 7:
		sec, nsec := u.Time().UnixTime()
		return time.Unix(sec, nsec), true
	}
	return time.Time{}, false
}

func binaryUUID(b primitive.Binary) (uuid.UUID, bool) {
	if (b.Subtype != 0x04 && b.Subtype != 0x03) || len(b.Data) != 16 {
		return uuid.UUID{}, false
	}
	u, err := uuid.FromBytes(b.Data)
	return u, err == nil
}

func canonicalize(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return v.Hex()
	case *primitive.ObjectID:
		if v == nil {
			return ""
		}
		return v.Hex()
	case string:
		if primitive.IsValidObjectID(v) {
			return strings.ToLower(v)
		}
		return v
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case uuid.UUID:
		return v.String()
	case primitive.Binary:
		if u, ok := binaryUUID(v); ok {
			return u.String()
		}
		return fmt.Sprintf("%x", v.Data)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// KeySet is the set of identifiers enumerated from one collection in one store,
// indexed by canonical form.
type KeySet map[string]DocumentKey

// NewKeySet builds a set from keys. Later duplicates of a canonical form are dropped.
func NewKeySet(keys ...DocumentKey) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set.Add(k)
	}
	return set
}

// Add inserts k unless a key with the same canonical form is present.
func (s KeySet) Add(k DocumentKey) {
	if _, exists := s[k.canonical]; !exists {
		s[k.canonical] = k
	}
}

// Has reports whether a key with k's canonical form is present.
func (s KeySet) Has(k DocumentKey) bool {
	_, ok := s[k.canonical]
	return ok
}

// Get returns this set's native key for the canonical form of k.
func (s KeySet) Get(k DocumentKey) (DocumentKey, bool) {
	native, ok := s[k.canonical]
	return native, ok
}

// Keys returns the keys ordered by canonical form.
func (s KeySet) Keys() []DocumentKey {
	out := make([]DocumentKey, 0, len(s))
	for _, k := range s {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

// Difference returns the keys of s that are absent from other.
func (s KeySet) Difference(other KeySet) []DocumentKey {
	out := make([]DocumentKey, 0)
	for c, k := range s {
		if _, ok := other[c]; !ok {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Intersection returns the keys of s that are also present in other. The returned
// keys carry s's native values.
func (s KeySet) Intersection(other KeySet) []DocumentKey {
	out := make([]DocumentKey, 0)
	for c, k := range s {
		if _, ok := other[c]; ok {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

func sortKeys(keys []DocumentKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].canonical < keys[j].canonical })
}
