package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/branchledger/pkg/redis"
)

func ExampleManager_Run() {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer mr.Close()

	ctx := context.Background()
	manager, _ := NewManager(redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), 30*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for range 2 {
		ran, _ := manager.Run(ctx, "followup-worker", eventID, func(context.Context) error {
			fmt.Println("recording follow-up")
			return nil
		})
		if !ran {
			fmt.Println("already processed")
		}
	}
	// Output:
	// recording follow-up
	// already processed
}
