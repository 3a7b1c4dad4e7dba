package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQuery_Normalize(t *testing.T) {
	q := PageQuery{Offset: -5, Limit: 0}.normalize()
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, 20, q.Limit)

	q = PageQuery{Offset: 10, Limit: 500}.normalize()
	assert.Equal(t, 10, q.Offset)
	assert.Equal(t, 100, q.Limit, "limit is capped")
}

func TestPageQuery_SortColumnWhitelist(t *testing.T) {
	assert.Equal(t, "email", PageQuery{Sort: "email"}.sortColumn())
	assert.Equal(t, "created_at", PageQuery{Sort: "created_at"}.sortColumn())
	// Anything outside the whitelist falls back to id so ORDER BY is never
	// built from raw input.
	assert.Equal(t, "id", PageQuery{Sort: "password_hash; DROP TABLE users"}.sortColumn())
	assert.Equal(t, "id", PageQuery{}.sortColumn())
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(errors.New("Error 1062 (23000): Duplicate entry 'a@x.com' for key 'users.email'")))
	assert.False(t, isDuplicate(errors.New("Error 1146: Table doesn't exist")))
	assert.False(t, isDuplicate(nil))
}
