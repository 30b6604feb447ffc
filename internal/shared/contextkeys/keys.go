package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "pos-replicator context key " + string(c)
}

// PassIDKey carries the identifier of the sync pass currently executing.
const PassIDKey = contextKey("passID")

// CollectionKey carries the collection being synchronized.
const CollectionKey = contextKey("collection")

// DirectionKey carries the sync direction ("forward" or "reverse").
const DirectionKey = contextKey("direction")

// ComponentKey is the key for the emitting component in context.Context
const ComponentKey = contextKey("component")

// RequestIDKey is the key for an HTTP request ID in context.Context
const RequestIDKey = contextKey("requestID")
