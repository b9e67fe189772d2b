package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"blockcache/buffer"
	"blockcache/disk"
)

func main() {
	dir := filepath.Join(".", "devices")
	blockSize := 128

	dm, err := disk.NewMgr(dir, blockSize)
	if err != nil {
		log.Fatalf("Failed to initialize device manager: %v", err)
	}
	defer func() {
		if err := dm.Close(); err != nil {
			log.Printf("Failed to close device manager: %v", err)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	cache := buffer.New(dm, 16, buffer.WithLogger(logger))

	blk, err := dm.Append("disk0")
	if err != nil {
		log.Fatalf("Failed to append block: %v", err)
	}
	fmt.Printf("Appended block: %v\n", blk)

	ctx := context.Background()
	b, err := cache.Read(ctx, blk)
	if err != nil {
		log.Fatalf("Failed to acquire block: %v", err)
	}
	if err := b.Contents().SetInt(0, 42); err != nil {
		log.Fatalf("Failed to set int: %v", err)
	}
	if err := b.Contents().SetString(8, "Hello, block cache!"); err != nil {
		log.Fatalf("Failed to set string: %v", err)
	}
	if err := cache.Write(b); err != nil {
		log.Fatalf("Failed to commit block: %v", err)
	}
	cache.Release(b)

	// Acquire again: served from memory, no second device read.
	b, err = cache.Read(ctx, blk)
	if err != nil {
		log.Fatalf("Failed to re-acquire block: %v", err)
	}
	intVal, err := b.Contents().GetInt(0)
	if err != nil {
		log.Fatalf("Failed to get int: %v", err)
	}
	strVal, err := b.Contents().GetString(8)
	if err != nil {
		log.Fatalf("Failed to get string: %v", err)
	}
	cache.Release(b)

	stats := cache.Stats()
	fmt.Printf("Integer value: %d\n", intVal)
	fmt.Printf("String value: %s\n", strVal)
	fmt.Printf("Cache hits: %d, misses: %d, steals: %d\n", stats.Hits, stats.Misses, stats.Steals)
	fmt.Printf("Device reads: %d, writes: %d\n", dm.BlocksRead(), dm.BlocksWritten())
}
