package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/rajkumarpandit/macrofin/internal/common"
	tcommon "github.com/rajkumarpandit/macrofin/tests/common"
)

// testManager starts the shared SurrealDB container and returns a Manager
// bound to a unique database per test for isolation.
func testManager(t *testing.T) *Manager {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping SurrealDB integration test in short mode")
	}

	sc := tcommon.StartSurrealDB(t)
	ctx := context.Background()

	db, err := surreal.New(sc.Address())
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}

	user, pass := sc.Credentials()
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": user,
		"pass": pass,
	}); err != nil {
		t.Fatalf("sign in to SurrealDB: %v", err)
	}

	// Sanitize t.Name() because subtests produce names like "Test/subtest"
	// and SurrealDB rejects "/" in database names.
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
	if err := db.Use(ctx, "macrofin_test", dbName); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}

	t.Cleanup(func() {
		db.Close(context.Background())
	})

	manager, err := NewManagerWithDB(db, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("initialize storage manager: %v", err)
	}
	return manager
}
