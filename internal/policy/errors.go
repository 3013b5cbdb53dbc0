package policy

import "errors"

// Sentinel errors returned by the membership policy and the stores beneath it.
// These always surface to the gateway, which maps them to HTTP statuses;
// the policy never logs or swallows a validation failure.
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrEmptyParticipants      = errors.New("at least one participant is required")
	ErrParticipantNotFound    = errors.New("participant does not exist")
	ErrBlocked                = errors.New("action blocked by a participant's blocklist")
	ErrTooManyParticipants    = errors.New("a private conversation cannot have more than two participants")
	ErrMissingName            = errors.New("a group conversation requires a name")
	ErrNotAParticipant        = errors.New("actor is not a participant of this conversation")
	ErrNotAGroup              = errors.New("participants can only be added to group conversations")
	ErrAlreadyMember          = errors.New("user is already a participant")
	ErrSelfConversation       = errors.New("cannot start a private conversation with yourself")
	ErrConcurrentModification = errors.New("conversation was modified concurrently, retry")
)
