package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func getMySQLAdapter(t *testing.T) *MySQLAdapter {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/stockledger"
	}

	ctx := context.Background()
	db, err := ConnectMySQL(ctx, dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adapter := NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return adapter
}

func TestMySQLAdapter_Contract(t *testing.T) {
	runRepositoryContract(t, getMySQLAdapter(t))
}

func TestJSONArg_BindsMetadataAsText(t *testing.T) {
	raw, err := domain.MarshalMetadata(domain.Metadata{"supplier": "acme"})
	require.NoError(t, err)

	arg := jsonArg(raw)
	assert.IsType(t, "", arg)
	assert.JSONEq(t, `{"supplier":"acme"}`, arg.(string))

	empty, err := domain.MarshalMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, jsonArg(empty))
}
