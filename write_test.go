package hermes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hermes "github.com/sbowman/hermes-reconnect"
)

func TestInsert(t *testing.T) {
	driver := newFakeDriver()
	conn := hermes.New(driver)

	n, err := conn.Insert(context.Background(), "public.users", map[string]any{
		"name":  "Bob",
		"email": "bob@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, `INSERT INTO "public"."users" ("email", "name") VALUES ($1, $2)`, driver.lastSQL)
	assert.Equal(t, []any{"bob@example.com", "Bob"}, driver.lastArgs)
}

func TestInsertDefaultValues(t *testing.T) {
	driver := newFakeDriver()
	conn := hermes.New(driver)

	_, err := conn.Insert(context.Background(), "audit", nil)
	require.NoError(t, err)

	assert.Equal(t, `INSERT INTO "audit" DEFAULT VALUES`, driver.lastSQL)
	assert.Empty(t, driver.lastArgs)
}

func TestUpdateRenumbersWhere(t *testing.T) {
	driver := newFakeDriver()
	conn := hermes.New(driver)

	_, err := conn.Update(context.Background(), "users",
		map[string]any{"name": "Bob", "active": true},
		"id = $1 OR email = $2", 7, "bob@example.com")
	require.NoError(t, err)

	assert.Equal(t, `UPDATE "users" SET "active" = $1, "name" = $2 WHERE id = $3 OR email = $4`, driver.lastSQL)
	assert.Equal(t, []any{true, "Bob", 7, "bob@example.com"}, driver.lastArgs)
}

func TestUpdateWithoutWhere(t *testing.T) {
	driver := newFakeDriver()
	conn := hermes.New(driver)

	_, err := conn.Update(context.Background(), "users", map[string]any{"active": false}, "")
	require.NoError(t, err)

	assert.Equal(t, `UPDATE "users" SET "active" = $1`, driver.lastSQL)
	assert.Equal(t, []any{false}, driver.lastArgs)
}

func TestDelete(t *testing.T) {
	driver := newFakeDriver()
	conn := hermes.New(driver)

	_, err := conn.Delete(context.Background(), "sessions", "expires_at < $1", "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, `DELETE FROM "sessions" WHERE expires_at < $1`, driver.lastSQL)
	assert.Equal(t, []any{"2024-01-01"}, driver.lastArgs)
}

func TestInsertRetriedAfterReconnect(t *testing.T) {
	driver := newFakeDriver()
	driver.fail("exec", lost("exec"))

	conn := hermes.New(driver)

	_, err := conn.Insert(context.Background(), "users", map[string]any{"email": "bob@example.com"})
	require.NoError(t, err)

	assert.Equal(t, 2, driver.inserted, "the lost insert is applied again")
	assert.Equal(t, 2, driver.sessions)
}
