package model

import "time"

// IDField is the identifier field every stored document carries.
const IDField = "_id"

// Default timestamp fields, in priority order.
const (
	FieldUpdatedAt = "updatedAt"
	FieldCreatedAt = "createdAt"
)

// DefaultTimestampFields is the lookup order used to derive a document timestamp.
var DefaultTimestampFields = []string{FieldUpdatedAt, FieldCreatedAt}

// Document is an opaque, schemaless record. Values fetched from a store are
// transient copies; the stores remain the source of truth.
type Document map[string]interface{}

// Key returns the document identifier, if set.
func (d Document) Key() (DocumentKey, bool) {
	v, ok := d[IDField]
	if !ok || v == nil {
		return DocumentKey{}, false
	}
	return NewDocumentKey(v), true
}

// WithKey returns a shallow copy of d whose identifier is key's native value.
func (d Document) WithKey(key DocumentKey) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	out[IDField] = key.Value()
	return out
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// TimestampResolver derives the conflict-comparison timestamp of a document or
// projection.
type TimestampResolver struct {
	fields []string
	parser *TimestampParser
}

// NewTimestampResolver uses fields in priority order; an empty list falls back to
// DefaultTimestampFields.
func NewTimestampResolver(fields []string) *TimestampResolver {
	if len(fields) == 0 {
		fields = DefaultTimestampFields
	}
	return &TimestampResolver{fields: append([]string(nil), fields...), parser: NewTimestampParser()}
}

// Fields returns the projected timestamp fields.
func (r *TimestampResolver) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Resolve returns the first parseable timestamp field, else the time embedded in the
// identifier. ok is false when the timestamp is unknown.
func (r *TimestampResolver) Resolve(doc Document) (time.Time, bool) {
	for _, field := range r.fields {
		if v, present := doc[field]; present {
			if t, ok := r.parser.TryParse(v); ok {
				return t, true
			}
		}
	}
	if key, ok := doc.Key(); ok {
		return key.EmbeddedTime()
	}
	return time.Time{}, false
}
