package policy

import (
	"context"
	"testing"
	"time"

	"chatgo/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixtureDirectory is an in-memory Directory snapshot for policy tests.
type fixtureDirectory struct {
	users  map[uint]*models.User
	blocks map[[2]uint]bool // [blocker, blocked]
}

func (d *fixtureDirectory) GetByID(_ context.Context, id uint) (*models.User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (d *fixtureDirectory) IsBlocking(_ context.Context, blockerID, blockedID uint) (bool, error) {
	return d.blocks[[2]uint{blockerID, blockedID}], nil
}

func newFixture() *fixtureDirectory {
	return &fixtureDirectory{
		users: map[uint]*models.User{
			1: {BaseModel: models.BaseModel{ID: 1}, Username: "alice"},
			2: {BaseModel: models.BaseModel{ID: 2}, Username: "bob"},
			3: {BaseModel: models.BaseModel{ID: 3}, Username: "carol"},
			4: {BaseModel: models.BaseModel{ID: 4}, Username: "dave"},
		},
		blocks: map[[2]uint]bool{},
	}
}

func conversationWith(isGroup bool, name string, participantIDs ...uint) *models.Conversation {
	conv := &models.Conversation{
		BaseModel: models.BaseModel{ID: 10},
		IsGroup:   isGroup,
		Name:      name,
	}
	for _, id := range participantIDs {
		conv.Participants = append(conv.Participants, models.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         id,
			JoinedAt:       time.Now(),
		})
	}
	return conv
}

func TestValidateCreate(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name         string
		actor        uint
		isGroup      bool
		convName     string
		participants []uint
		block        [2]uint // blocker, blocked; zero value means none
		wantErr      error
		wantName     string
		wantIsGroup  bool
	}{
		{
			name:         "no participants",
			actor:        1,
			participants: nil,
			wantErr:      ErrEmptyParticipants,
		},
		{
			name:         "unknown participant",
			actor:        1,
			participants: []uint{99},
			wantErr:      ErrParticipantNotFound,
		},
		{
			name:         "invitee has blocked actor",
			actor:        1,
			participants: []uint{2},
			block:        [2]uint{2, 1},
			wantErr:      ErrBlocked,
		},
		{
			name:         "actor blocking invitee does not matter",
			actor:        1,
			participants: []uint{2},
			block:        [2]uint{1, 2},
			wantName:     "bob",
		},
		{
			name:         "private with two invitees",
			actor:        1,
			participants: []uint{2, 3},
			wantErr:      ErrTooManyParticipants,
		},
		{
			name:         "private with self",
			actor:        1,
			participants: []uint{1},
			wantErr:      ErrSelfConversation,
		},
		{
			name:         "private resolves to other username",
			actor:        1,
			participants: []uint{3},
			wantName:     "carol",
		},
		{
			name:         "group without name",
			actor:        1,
			isGroup:      true,
			participants: []uint{2, 3},
			wantErr:      ErrMissingName,
		},
		{
			name:         "group with name",
			actor:        1,
			isGroup:      true,
			convName:     "Team",
			participants: []uint{2, 3},
			wantName:     "Team",
			wantIsGroup:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := newFixture()
			if tc.block != [2]uint{} {
				dir.blocks[tc.block] = true
			}
			p := New(dir)

			name, isGroup, err := p.ValidateCreate(ctx, tc.actor, tc.isGroup, tc.convName, tc.participants)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantName, name)
			require.Equal(t, tc.wantIsGroup, isGroup)
		})
	}
}

func TestValidatePost(t *testing.T) {
	ctx := context.Background()
	dir := newFixture()
	p := New(dir)

	conv := conversationWith(true, "Team", 1, 2, 3)

	// Non-participant can never post.
	require.ErrorIs(t, p.ValidatePost(ctx, 4, conv), ErrNotAParticipant)

	// Member posts fine when nobody blocks them.
	require.NoError(t, p.ValidatePost(ctx, 1, conv))

	// A single other participant blocking the sender rejects the whole send.
	dir.blocks[[2]uint{3, 1}] = true
	require.ErrorIs(t, p.ValidatePost(ctx, 1, conv), ErrBlocked)

	// The block is directed: user 3 still posts even though they block user 1.
	require.NoError(t, p.ValidatePost(ctx, 3, conv))

	// The sender's own blocklist entries are ignored on send.
	dir.blocks = map[[2]uint]bool{{2, 3}: false, {1, 2}: true}
	require.NoError(t, p.ValidatePost(ctx, 1, conv))
}

func TestValidateAddParticipants(t *testing.T) {
	ctx := context.Background()
	p := New(newFixture())

	private := conversationWith(false, "bob", 1, 2)
	group := conversationWith(true, "Team", 1, 2)

	cases := []struct {
		name    string
		actor   uint
		conv    *models.Conversation
		newIDs  []uint
		wantErr error
	}{
		{"private conversation", 1, private, []uint{3}, ErrNotAGroup},
		{"empty id list", 1, group, nil, ErrEmptyParticipants},
		{"actor not a member", 3, group, []uint{4}, ErrNotAParticipant},
		{"already a member", 1, group, []uint{2}, ErrAlreadyMember},
		{"already-member wins over outsider actor", 3, group, []uint{2}, ErrAlreadyMember},
		{"unknown user", 1, group, []uint{99}, ErrParticipantNotFound},
		{"one bad id rejects all", 1, group, []uint{3, 2}, ErrAlreadyMember},
		{"valid add", 1, group, []uint{3, 4}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.ValidateAddParticipants(ctx, tc.actor, tc.conv, tc.newIDs)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateFavorite(t *testing.T) {
	p := New(newFixture())
	conv := conversationWith(true, "Team", 1, 2)

	require.NoError(t, p.ValidateFavorite(1, conv))
	require.ErrorIs(t, p.ValidateFavorite(3, conv), ErrNotAParticipant)
}

func TestResolveDisplayName(t *testing.T) {
	ctx := context.Background()
	p := New(newFixture())

	group := conversationWith(true, "Team", 1, 2, 3)
	name, err := p.ResolveDisplayName(ctx, 1, group)
	require.NoError(t, err)
	require.Equal(t, "Team", name)

	private := conversationWith(false, "", 1, 2)
	name, err = p.ResolveDisplayName(ctx, 1, private)
	require.NoError(t, err)
	require.Equal(t, "bob", name)

	name, err = p.ResolveDisplayName(ctx, 2, private)
	require.NoError(t, err)
	require.Equal(t, "alice", name)

	// A private conversation with a membership count other than two is
	// corrupted state and must be rejected, not guessed at.
	corrupted := conversationWith(false, "", 1, 2, 3)
	_, err = p.ResolveDisplayName(ctx, 1, corrupted)
	require.Error(t, err)
}
