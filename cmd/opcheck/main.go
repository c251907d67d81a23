package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"cinegen/internal/infra"
	"cinegen/internal/providers/veo"
	"cinegen/internal/storage"
)

// opcheck inspects a Veo long-running operation by handle. With -watch it
// polls until the operation settles; a finished inline result is written to
// the local store, a uri result is just printed.
func main() {
	operation := flag.String("operation", "", "operation handle, qualified or bare id")
	watch := flag.Bool("watch", false, "poll until the operation reaches a terminal state")
	interval := flag.Duration("interval", 10*time.Second, "poll interval when watching")
	timeout := flag.Duration("timeout", 10*time.Minute, "give up after this long when watching")
	out := flag.String("out", "", "directory for downloaded inline results (defaults to STORAGE_PATH)")
	flag.Parse()

	if *operation == "" {
		fmt.Fprintln(os.Stderr, "usage: opcheck -operation <handle> [-watch]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		fatal(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	client := veo.NewClient(veo.Options{
		AccessToken: cfg.GoogleAccessToken,
		ProjectID:   cfg.GoogleProjectID,
		Location:    cfg.GoogleLocation,
		Model:       cfg.VeoModel,
		Logger:      &logger,
	})
	if !client.Configured() {
		fatal(fmt.Errorf("GOOGLE_ACCESS_TOKEN and GOOGLE_PROJECT_ID must be set"))
	}

	ctx := context.Background()
	deadline := time.Now().Add(*timeout)

	for {
		status, err := client.Poll(ctx, *operation)
		if err != nil {
			fatal(err)
		}
		if status.Done {
			if status.Err != nil {
				fatal(fmt.Errorf("operation failed: %w", status.Err))
			}
			report(cfg, out, *operation, status.Asset.URI, status.Asset.Data)
			return
		}

		fmt.Printf("operation %s still running\n", *operation)
		if !*watch {
			return
		}
		if time.Now().After(deadline) {
			fatal(fmt.Errorf("operation did not finish within %s", *timeout))
		}
		time.Sleep(*interval)
	}
}

func report(cfg *infra.Config, out *string, operation, uri string, data []byte) {
	if len(data) > 0 {
		dir := *out
		if dir == "" {
			dir = cfg.StoragePath
		}
		store, err := storage.NewFileStore(dir)
		if err != nil {
			fatal(err)
		}
		key, err := store.Put(context.Background(), data, fmt.Sprintf("opcheck/%d.mp4", time.Now().Unix()))
		if err != nil {
			fatal(err)
		}
		path, _ := store.Path(key)
		fmt.Printf("operation %s done, saved %d bytes to %s\n", operation, len(data), path)
		return
	}
	fmt.Printf("operation %s done, result at %s\n", operation, uri)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "opcheck:", err)
	os.Exit(1)
}
