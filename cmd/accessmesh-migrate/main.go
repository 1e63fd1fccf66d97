package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/accessmesh/internal/event"
)

var (
	dataDir    = flag.String("data-dir", "./accessmesh-data", "Shard data directory")
	dryRun     = flag.Bool("dry-run", false, "Show what would change without making changes")
	backupPath = flag.String("backup", "", "Path to back up the database before migration (default: <data-dir>/events.db.backup)")
)

var (
	logBucket  = []byte("event_log")
	metaBucket = []byte("meta")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("accessmesh event log compaction tool")
	log.Println("=====================================")

	dbPath := filepath.Join(*dataDir, "events.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Event log not found at %s", dbPath)
	}

	log.Printf("Event log: %s", dbPath)
	log.Printf("Dry run: %v", *dryRun)

	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Println("✓ Backup created successfully")
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		log.Fatalf("Failed to open event log: %v", err)
	}
	defer db.Close()

	if err := rebuildHashBuckets(db, *dryRun); err != nil {
		log.Fatalf("Compaction failed: %v", err)
	}

	if *dryRun {
		log.Println("\nDry run completed. No changes made.")
		log.Println("Run without --dry-run to apply the rebuild.")
	} else {
		log.Println("\n✓ Compaction completed successfully!")
	}
}

// rebuildHashBuckets drops every by_hash_<kind> bucket and repopulates
// it from the append-only event_log bucket, the source of truth. This
// repairs a log whose hash-indexed buckets have drifted from the log
// (e.g. a crash between the two bbolt.Put calls in a prior release
// that wrote them outside a single transaction) and recovers disk
// space a log with many superseded split-range deletes leaves behind
// as free pages.
func rebuildHashBuckets(db *bolt.DB, dryRun bool) error {
	var totalEvents int
	kindCounts := make(map[string]int)

	err := db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(logBucket)
		if bkt == nil {
			return fmt.Errorf("event log is missing its %q bucket; not an accessmesh event log", logBucket)
		}
		return bkt.ForEach(func(k, v []byte) error {
			var e event.Event
			if err := json.Unmarshal(v, &e); err != nil {
				log.Printf("⚠ Warning: skipping unreadable log entry: %v", err)
				return nil
			}
			totalEvents++
			kindCounts[string(e.Kind)]++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Printf("Found %d events across %d kinds in the log", totalEvents, len(kindCounts))
	for kind, count := range kindCounts {
		log.Printf("  %s: %d", kind, count)
	}

	if dryRun {
		log.Println("\n[DRY RUN] Would perform the following operations:")
		log.Println("1. Drop every by_hash_<kind> bucket")
		log.Println("2. Re-derive each bucket's entries from event_log, in log order")
		log.Printf("3. Rewrite %d events total", totalEvents)
		return nil
	}

	return db.Update(func(tx *bolt.Tx) error {
		logBkt := tx.Bucket(logBucket)

		c := tx.Cursor()
		var kindBuckets [][]byte
		for name, _ := c.First(); name != nil; name, _ = c.Next() {
			if len(name) > 8 && string(name[:8]) == "by_hash_" {
				kindBuckets = append(kindBuckets, append([]byte(nil), name...))
			}
		}
		for _, name := range kindBuckets {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("dropping bucket %s: %w", name, err)
			}
		}

		rebuilt := make(map[string]*bolt.Bucket)
		written := 0

		err := logBkt.ForEach(func(logKey, v []byte) error {
			var e event.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}

			bucketName := []byte("by_hash_" + string(e.Kind))
			kb, ok := rebuilt[string(e.Kind)]
			if !ok {
				var err error
				kb, err = tx.CreateBucketIfNotExists(bucketName)
				if err != nil {
					return fmt.Errorf("recreating bucket %s: %w", bucketName, err)
				}
				rebuilt[string(e.Kind)] = kb
			}

			key := make([]byte, 4+len(logKey))
			binary.BigEndian.PutUint32(key[0:4], uint32(e.HashCode)^0x80000000)
			copy(key[4:], logKey)

			if err := kb.Put(key, v); err != nil {
				return fmt.Errorf("rewriting event into %s: %w", bucketName, err)
			}
			written++
			if written%500 == 0 {
				log.Printf("  Rewritten %d/%d...", written, totalEvents)
			}
			return nil
		})
		if err != nil {
			return err
		}

		_, err = tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
