package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hark-assistant/hark/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a run store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: ":memory:", // in-memory database for the example
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateRun demonstrates recording and retrieving a run.
func ExampleSQLiteStore_CreateRun() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	run := &stores.Run{
		ID:        "plan-001",
		Status:    stores.RunStatusRunning,
		StepCount: 2,
		StartedAt: time.Now(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	summary := "Launched chrome; Volume set to 80%"
	if err := store.UpdateRunStatus(ctx, "plan-001", stores.RunStatusCompleted, &summary, nil); err != nil {
		log.Fatal(err)
	}

	retrieved, err := store.GetRun(ctx, "plan-001")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s: %s\n", retrieved.Status, *retrieved.Summary)
	// Output: completed: Launched chrome; Volume set to 80%
}
