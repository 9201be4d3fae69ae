package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "dataportal:")
	var dest []string

	assert.ErrorIs(t, repo.Get(context.Background(), "sites", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "sites", []string{"mace-head"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
	assert.NoError(t, repo.Close())
	assert.Equal(t, "dataportal:sites", repo.key("sites"))
}
