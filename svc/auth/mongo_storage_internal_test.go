package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestUserDocument_LegacyShape(t *testing.T) {
	t.Parallel()

	oid := bson.NewObjectID()
	avatar := bson.NewObjectID()
	frame := bson.NewObjectID()
	created := time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC)

	// As written by the mongoose schema: no provider, null password on
	// social users, numbers as doubles and a version key.
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: oid},
		{Key: "email", Value: "old@example.com"},
		{Key: "password", Value: "$2b$10$legacydigest"},
		{Key: "name", Value: "Old Reader"},
		{Key: "avatar", Value: avatar},
		{Key: "avatar_frame", Value: frame},
		{Key: "cover", Value: nil},
		{Key: "age", Value: 21.0},
		{Key: "gender", Value: "female"},
		{Key: "role", Value: "author"},
		{Key: "refreshToken", Value: "eyJhbGciOi.legacy.token"},
		{Key: "isDeleted", Value: false},
		{Key: "createdAt", Value: created},
		{Key: "updatedAt", Value: created},
		{Key: "__v", Value: int32(0)},
	})
	require.NoError(t, err)

	var doc userDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	acc := doc.account()

	assert.Equal(t, "old@example.com", acc.Email)
	assert.True(t, acc.HasPassword())
	assert.Equal(t, ProviderLocal, acc.Provider)
	assert.Equal(t, RoleAuthor, acc.Role)
	assert.Equal(t, 21, acc.Age)
	assert.Equal(t, avatar.Hex(), acc.AvatarID)
	assert.Equal(t, frame.Hex(), acc.AvatarFrameID)
	assert.Empty(t, acc.CoverID)
	assert.True(t, created.Equal(acc.CreatedAt))

	back, ok := objectIDFromAccountID(acc.ID)
	require.True(t, ok)
	assert.Equal(t, oid, back)

	// Writing the account back keeps the ObjectID keys and references.
	out := toDocument(back, acc)
	assert.Equal(t, oid, out.ID)
	require.NotNil(t, out.Avatar)
	assert.Equal(t, avatar, *out.Avatar)
	assert.Nil(t, out.Cover)
}

func TestUserDocument_SocialUserWithNullPassword(t *testing.T) {
	t.Parallel()

	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: bson.NewObjectID()},
		{Key: "email", Value: "fan@example.com"},
		{Key: "password", Value: nil},
		{Key: "name", Value: "Fan"},
		{Key: "provider", Value: "google"},
	})
	require.NoError(t, err)

	var doc userDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	acc := doc.account()
	assert.False(t, acc.HasPassword())
	assert.Equal(t, ProviderGoogle, acc.Provider)
	assert.Equal(t, RoleUser, acc.Role)
}

func TestObjectIDFromAccountID(t *testing.T) {
	t.Parallel()

	oid := bson.NewObjectID()
	id := accountIDFromObjectID(oid)
	got, ok := objectIDFromAccountID(id)
	require.True(t, ok)
	assert.Equal(t, oid, got)

	// Ids from other drivers never address a Mongo document.
	_, ok = objectIDFromAccountID(uuid.New())
	assert.False(t, ok)
}
