package hermes_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hermes "github.com/sbowman/hermes-reconnect"
)

func TestNoRows(t *testing.T) {
	driver := newFakeDriver()
	conn := hermes.New(driver)

	var email string
	err := conn.QueryRow(context.Background(), "SELECT email FROM users WHERE id = $1", 404).Scan(&email)

	assert.True(t, hermes.NoRows(err))
	assert.True(t, hermes.NoRows(sql.ErrNoRows))
	assert.False(t, hermes.NoRows(errors.New("no rows")))
	assert.Equal(t, 1, driver.count("query_row"), "no rows isn't a lost connection")
}

func TestSelectEmpty(t *testing.T) {
	driver := newFakeDriver()
	driver.columns = []string{"id", "email"}

	rs, err := hermes.New(driver).Select(context.Background(), "SELECT id, email FROM users")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "email"}, rs.Columns)
	assert.Empty(t, rs.Rows)
	assert.Empty(t, rs.Maps())
}
