package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocialRepository_ToggleFollowIsItsOwnInverse(t *testing.T) {
	db := setupTestDB(t)
	social := NewSocialRepository(db)
	users := NewUserRepository(db, nil)
	ctx := context.Background()
	a := createUser(t, db, "alice")
	b := createUser(t, db, "bob")

	following, err := social.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, following)

	require.NoError(t, users.LoadRelations(ctx, a))
	require.NoError(t, users.LoadRelations(ctx, b))
	assert.Equal(t, []uint{b.ID}, a.Following)
	assert.Equal(t, []uint{a.ID}, b.Followers)
	assert.Empty(t, a.Followers)

	following, err = social.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, following)

	require.NoError(t, users.LoadRelations(ctx, a))
	require.NoError(t, users.LoadRelations(ctx, b))
	assert.Empty(t, a.Following)
	assert.Empty(t, b.Followers)
}

func TestSocialRepository_FollowUnfollowIdempotent(t *testing.T) {
	db := setupTestDB(t)
	social := NewSocialRepository(db)
	ctx := context.Background()
	a := createUser(t, db, "alice")
	b := createUser(t, db, "bob")

	require.NoError(t, social.Follow(ctx, a.ID, b.ID))
	require.NoError(t, social.Follow(ctx, a.ID, b.ID))
	ok, err := social.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	reverse, err := social.IsFollowing(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, reverse, "follow is asymmetric")

	require.NoError(t, social.Unfollow(ctx, a.ID, b.ID))
	require.NoError(t, social.Unfollow(ctx, a.ID, b.ID))
	ok, err = social.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSocialRepository_ToggleBookmark(t *testing.T) {
	db := setupTestDB(t)
	social := NewSocialRepository(db)
	users := NewUserRepository(db, nil)
	ctx := context.Background()
	a := createUser(t, db, "alice")
	p := createPost(t, db, a.ID, "hello")

	bookmarked, err := social.ToggleBookmark(ctx, a.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, bookmarked)

	require.NoError(t, users.LoadRelations(ctx, a))
	assert.Equal(t, []uint{p.ID}, a.Bookmarks)

	bookmarked, err = social.ToggleBookmark(ctx, a.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, bookmarked)

	require.NoError(t, users.LoadRelations(ctx, a))
	assert.Empty(t, a.Bookmarks)
}
