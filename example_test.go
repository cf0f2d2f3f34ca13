package kvhop_test

import (
	"context"
	"log"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/kvhop/kvhop"
)

// Connect to a three node cluster whose members announce internal
// hostnames in their redirect replies.
func Example() {
	cfg := kvhop.DefaultConfig()
	cfg.Nodes = []string{"127.0.0.1:7001", "127.0.0.1:7002", "127.0.0.1:7003"}
	cfg.Aliases = map[string]string{
		"kv-node-1:6379": "127.0.0.1:7001",
		"kv-node-2:6379": "127.0.0.1:7002",
		"kv-node-3:6379": "127.0.0.1:7003",
	}

	client, err := kvhop.New(cfg, &kvhop.Opts{
		DialOptions: []redis.DialOption{redis.DialConnectTimeout(5 * time.Second)},
	})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Set(ctx, "user:alice", "alice"); err != nil {
		log.Fatalf("SET failed: %v", err)
	}
	v, err := client.Get(ctx, "user:alice")
	if err != nil {
		log.Fatalf("GET failed: %v", err)
	}
	log.Println(v)
}
