package policy

import (
	"context"
	"errors"
	"fmt"

	"chatgo/internal/models"

	"gorm.io/gorm"
)

// Directory is the narrow view of the user store the policy needs:
// identity resolution and blocklist existence checks. It is satisfied by
// storage.UserRepository and by fixture directories in tests.
type Directory interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// IsBlocking reports whether blockerID has blockedID on their blocklist.
	// The relation is directed; callers pick the direction they need.
	IsBlocking(ctx context.Context, blockerID, blockedID uint) (bool, error)
}

// Policy centralizes every authorization and validity rule that touches
// conversation membership or blocklists. All methods are side-effect free:
// they read through the Directory and decide, the caller persists.
type Policy struct {
	dir Directory
}

// New creates a Policy backed by the given directory.
func New(dir Directory) *Policy {
	return &Policy{dir: dir}
}

// ValidateCreate checks a conversation-creation request and resolves the
// display name and group flag the conversation should be stored with.
//
// Each invited participant must exist, and none of them may have the actor
// on their blocklist (the check runs from the invitee's perspective; the
// actor's own blocklist does not matter here). A private conversation takes
// exactly one invited participant and is named after them; a group
// conversation with more than one invitee requires a caller-supplied name.
// The caller is responsible for persisting the conversation with the actor
// added to the participant set.
func (p *Policy) ValidateCreate(ctx context.Context, actorID uint, isGroup bool, name string, participantIDs []uint) (string, bool, error) {
	if len(participantIDs) == 0 {
		return "", false, ErrEmptyParticipants
	}

	participants := make([]*models.User, 0, len(participantIDs))
	for _, id := range participantIDs {
		participant, err := p.dir.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", false, fmt.Errorf("participant %d: %w", id, ErrParticipantNotFound)
			}
			return "", false, fmt.Errorf("looking up participant %d: %w", id, err)
		}
		blocked, err := p.dir.IsBlocking(ctx, participant.ID, actorID)
		if err != nil {
			return "", false, fmt.Errorf("checking blocklist of user %d: %w", participant.ID, err)
		}
		if blocked {
			return "", false, fmt.Errorf("user %s has blocked you: %w", participant.Username, ErrBlocked)
		}
		participants = append(participants, participant)
	}

	if !isGroup {
		if len(participantIDs) > 1 {
			return "", false, ErrTooManyParticipants
		}
		if participantIDs[0] == actorID {
			return "", false, ErrSelfConversation
		}
		// A private conversation is displayed under the other participant's
		// username; nothing the caller supplied as a name is stored.
		return participants[0].Username, false, nil
	}

	if len(participantIDs) > 1 && name == "" {
		return "", false, ErrMissingName
	}
	return name, true, nil
}

// ValidatePost checks that the actor may post to the conversation: they must
// be a current participant, and no other participant may have them blocked.
// A single blocking participant rejects the whole send, not just delivery to
// that participant. The conversation must have its participants loaded.
func (p *Policy) ValidatePost(ctx context.Context, actorID uint, conversation *models.Conversation) error {
	if !conversation.HasParticipant(actorID) {
		return ErrNotAParticipant
	}
	for _, participant := range conversation.Participants {
		if participant.UserID == actorID {
			continue
		}
		blocked, err := p.dir.IsBlocking(ctx, participant.UserID, actorID)
		if err != nil {
			return fmt.Errorf("checking blocklist of user %d: %w", participant.UserID, err)
		}
		if blocked {
			return fmt.Errorf("user %d has blocked the sender: %w", participant.UserID, ErrBlocked)
		}
	}
	return nil
}

// ValidateAddParticipants checks that the actor may append newIDs to the
// conversation's participant set. Private conversations never accept new
// participants. The add is all-or-nothing: one already-member or unknown id
// rejects the whole request. An already-member id is reported before the
// actor's own membership is considered.
func (p *Policy) ValidateAddParticipants(ctx context.Context, actorID uint, conversation *models.Conversation, newIDs []uint) error {
	if !conversation.IsGroup {
		return ErrNotAGroup
	}
	if len(newIDs) == 0 {
		return ErrEmptyParticipants
	}
	for _, id := range newIDs {
		if conversation.HasParticipant(id) {
			return fmt.Errorf("user %d: %w", id, ErrAlreadyMember)
		}
	}
	if !conversation.HasParticipant(actorID) {
		return ErrNotAParticipant
	}
	for _, id := range newIDs {
		if _, err := p.dir.GetByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("participant %d: %w", id, ErrParticipantNotFound)
			}
			return fmt.Errorf("looking up participant %d: %w", id, err)
		}
	}
	return nil
}

// ValidateFavorite checks that the actor may add or remove the conversation
// from their favorites; only participants may. The toggle itself is
// idempotent and handled by the store.
func (p *Policy) ValidateFavorite(actorID uint, conversation *models.Conversation) error {
	if !conversation.HasParticipant(actorID) {
		return ErrNotAParticipant
	}
	return nil
}

// ResolveDisplayName computes the name a conversation is shown under to a
// given viewer. Group conversations use their stored name. For private
// conversations it is the username of the participant that is not the
// viewer, computed over the exact two-member set; a "private" conversation
// with any other member count is treated as corrupted state and rejected.
func (p *Policy) ResolveDisplayName(ctx context.Context, viewerID uint, conversation *models.Conversation) (string, error) {
	if conversation.IsGroup {
		return conversation.Name, nil
	}
	if len(conversation.Participants) != 2 {
		return "", fmt.Errorf("private conversation %d has %d participants: %w",
			conversation.ID, len(conversation.Participants), ErrConversationNotFound)
	}
	for _, participant := range conversation.Participants {
		if participant.UserID == viewerID {
			continue
		}
		if participant.User.ID != 0 {
			return participant.User.Username, nil
		}
		other, err := p.dir.GetByID(ctx, participant.UserID)
		if err != nil {
			return "", fmt.Errorf("resolving participant %d: %w", participant.UserID, err)
		}
		return other.Username, nil
	}
	// Viewer is the only identity in the set, which the two-member check
	// above rules out unless both rows belong to the viewer.
	return "", ErrNotAParticipant
}
