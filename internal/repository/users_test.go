// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/coursemix/coursemix/internal/repository"
	"codeberg.org/coursemix/coursemix/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "student@brocku.ca", "hash", time.Now())

	require.NoError(t, err)
	_, parseErr := uuid.Parse(user.ID)
	require.NoError(t, parseErr)

	byID, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "student@brocku.ca", byID.Email)

	byEmail, err := repo.GetUserByEmail(ctx, "student@brocku.ca")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestCreateUser_Duplicate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "student@brocku.ca")

	_, err := repo.CreateUser(context.Background(), "student@brocku.ca", "hash", time.Now())

	require.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByEmail(context.Background(), "ghost@brocku.ca")

	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserExists(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "student@brocku.ca")

	exists, err := repo.UserExists(ctx, "student@brocku.ca")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.UserExists(ctx, "other@brocku.ca")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateUserPassword(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "student@brocku.ca")

	require.NoError(t, repo.UpdateUserPassword(ctx, user.ID, "new-hash", time.Now()))

	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.PasswordHash)

	err = repo.UpdateUserPassword(ctx, "missing", "x", time.Now())
	require.ErrorIs(t, err, repository.ErrNotFound)
}
