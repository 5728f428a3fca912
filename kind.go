// kind.go - error kind tags recorded at each traced call site.
//
// Conventions (documented, not enforced):
//   - Kinds are short identifiers, usually the Go-style name of the error
//     ("NotFound", "ParseConfig").
//   - The empty kind is never used by the core; New/Wrap substitute KindError.
//   - Kinds should be constants. Each call site caches a handful of tags;
//     kinds built at run time beyond that are resolved on every call.
package ertrace

// Kind names the error a call site represents. It becomes the Location tag.
type Kind string

// Built-in kinds.
const (
	// KindError is used when a caller supplies no kind.
	KindError Kind = "Error"
	// KindForward marks a site that propagated an error without re-tagging it.
	KindForward Kind = "=>"
)

// String returns the kind as a plain string.
func (k Kind) String() string { return string(k) }

// IsForward reports whether k is the propagation marker.
func (k Kind) IsForward() bool { return k == KindForward }

// orDefault substitutes KindError for the empty kind.
func (k Kind) orDefault() Kind {
	if k == "" {
		return KindError
	}
	return k
}
