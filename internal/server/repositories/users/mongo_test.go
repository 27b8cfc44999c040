package users

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

func TestUserDocument_RoundTrip(t *testing.T) {
	phone := "+371"
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	id := bson.NewObjectID()

	in := &models.User{
		ID:           id.Hex(),
		Email:        "a@x.io",
		PasswordHash: "h",
		Name:         "A",
		Phone:        &phone,
		Roles:        []string{"member", "admin"},
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	doc, err := toDocument(in)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, []string{"admin", "member"}, doc.Roles)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded userDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	out := decoded.toModel()
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, "+371", *out.Phone)
	assert.Nil(t, out.Avatar)
	assert.Equal(t, []string{"admin", "member"}, out.Roles)
	assert.True(t, ts.Equal(out.CreatedAt))
}

func TestUserDocument_NewUserHasNoID(t *testing.T) {
	doc, err := toDocument(&models.User{Email: "a@x.io"})
	require.NoError(t, err)
	assert.True(t, doc.ID.IsZero())

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	_, err = bson.Raw(raw).LookupErr("_id")
	assert.Error(t, err, "_id must be omitted so the server assigns one")

	assert.Equal(t, []string{}, userDocument{}.toModel().Roles)
}

func TestUserDocument_BadID(t *testing.T) {
	_, err := toDocument(&models.User{ID: "not-hex"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
