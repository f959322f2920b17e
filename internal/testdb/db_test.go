package testdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTestDatabaseURL(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvTestDBURL, "")
	assert.Empty(t, GetTestDatabaseURL())
	assert.False(t, IsIntegrationTestEnvironment())

	t.Setenv(EnvTestDBURL, "postgres://b")
	assert.Equal(t, "postgres://b", GetTestDatabaseURL())

	t.Setenv(EnvDatabaseURL, "postgres://a")
	assert.Equal(t, "postgres://a", GetTestDatabaseURL(), "DATABASE_URL takes precedence")
	assert.True(t, IsIntegrationTestEnvironment())
}
