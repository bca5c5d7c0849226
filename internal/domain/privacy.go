package domain

import "fmt"

// Privacy is the two-state visibility of a collection.
type Privacy uint8

// Privacy states. The zero value is private.
const (
	PrivacyPrivate Privacy = iota
	PrivacyPublic
)

// PrivacyOf maps a stored flag to its state.
func PrivacyOf(isPublic bool) Privacy {
	if isPublic {
		return PrivacyPublic
	}
	return PrivacyPrivate
}

// IsPublic reports whether p is PrivacyPublic.
func (p Privacy) IsPublic() bool { return p == PrivacyPublic }

func (p Privacy) String() string {
	switch p {
	case PrivacyPrivate:
		return "private"
	case PrivacyPublic:
		return "public"
	default:
		return fmt.Sprintf("Privacy(%d)", uint8(p))
	}
}

// PrivacyTransition is the edge taken between two privacy states.
type PrivacyTransition uint8

// Transitions. TransitionNone covers both self-loops.
const (
	TransitionNone PrivacyTransition = iota
	TransitionPublished
	TransitionUnpublished
)

// Transition returns the edge from one state to another. It is the only
// place the private/public state machine is defined.
func Transition(from, to Privacy) PrivacyTransition {
	switch {
	case from == PrivacyPrivate && to == PrivacyPublic:
		return TransitionPublished
	case from == PrivacyPublic && to == PrivacyPrivate:
		return TransitionUnpublished
	default:
		return TransitionNone
	}
}

// CollectionOp is the index operation implied for the collection document
// itself. It returns false when the collection document must not be touched.
func (t PrivacyTransition) CollectionOp(after Privacy, metadataChanged bool) (IndexOp, bool) {
	switch t {
	case TransitionPublished:
		return IndexAdd, true
	case TransitionUnpublished:
		return IndexRemove, true
	}
	if after.IsPublic() && metadataChanged {
		return IndexEdit, true
	}
	return "", false
}

func (t PrivacyTransition) String() string {
	switch t {
	case TransitionPublished:
		return "published"
	case TransitionUnpublished:
		return "unpublished"
	default:
		return "none"
	}
}
