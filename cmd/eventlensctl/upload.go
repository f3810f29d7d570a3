package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/your-org/eventlens/internal/ingest"
	"github.com/your-org/eventlens/internal/notify"
	"github.com/your-org/eventlens/internal/queue"
	"github.com/your-org/eventlens/internal/recognition"
	"github.com/your-org/eventlens/internal/roster"
	"github.com/your-org/eventlens/internal/storage"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <event-id> <folder-path> [folder-path...]",
	Short: "Upload a folder of photos to an event",
	Long: `Upload photos from one or more folders to an event through the recognition
pipeline. Photos are sent in batches of the configured upload.max_photos.

The photographer must be registered for the event. Attendees are only
emailed when --notify is set.

Example:
  eventlensctl upload --photographer 6b0d... 3f2a... /path/to/photos
  eventlensctl upload -r --notify --photographer 6b0d... 3f2a... /path/to/photos`,
	Args: cobra.MinimumNArgs(2),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolP("recursive", "r", false, "Search for photos recursively in subdirectories")
	uploadCmd.Flags().String("photographer", "", "Photographer user id the photos are attributed to")
	uploadCmd.Flags().Bool("notify", false, "Email matched attendees using the configured transport")
	_ = uploadCmd.MarkFlagRequired("photographer")
}

// isImageFile checks if a file has a supported image extension
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

func collectPhotos(folders []string, recursive bool) ([]string, error) {
	var paths []string
	for _, folder := range folders {
		info, err := os.Stat(folder)
		if err != nil {
			return nil, fmt.Errorf("cannot access folder %s: %w", folder, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", folder)
		}

		if recursive {
			err := filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isImageFile(d.Name()) {
					paths = append(paths, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("cannot walk folder %s: %w", folder, err)
			}
			continue
		}

		entries, err := os.ReadDir(folder)
		if err != nil {
			return nil, fmt.Errorf("cannot read folder %s: %w", folder, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && isImageFile(entry.Name()) {
				paths = append(paths, filepath.Join(folder, entry.Name()))
			}
		}
	}
	return paths, nil
}

// chunk splits paths into consecutive batches of at most size.
func chunk(paths []string, size int) [][]string {
	var out [][]string
	for len(paths) > size {
		out = append(out, paths[:size])
		paths = paths[size:]
	}
	if len(paths) > 0 {
		out = append(out, paths)
	}
	return out
}

func fileJob(path string) ingest.Job {
	return ingest.Job{
		Filename: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// queuedNotifier waits for room in the dispatcher queue, so a bulk upload is
// paced by mail delivery instead of dropping notifications.
type queuedNotifier struct {
	ctx        context.Context
	dispatcher *notify.Dispatcher
}

func (q queuedNotifier) Notify(n notify.Notification) {
	// Failures are counted by the dispatcher and reported in the summary.
	_ = q.dispatcher.Enqueue(q.ctx, n)
}

func runUpload(cmd *cobra.Command, args []string) error {
	eventID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", args[0], err)
	}
	photographerID, err := uuid.Parse(mustGetString(cmd, "photographer"))
	if err != nil {
		return fmt.Errorf("invalid --photographer: %w", err)
	}

	paths, err := collectPhotos(args[1:], mustGetBool(cmd, "recursive"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No image files found in the specified folders.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to connect to minio: %w", err)
	}

	var (
		notifier   ingest.Notifier
		dispatcher *notify.Dispatcher
	)
	if mustGetBool(cmd, "notify") {
		var sender notify.Sender
		if cfg.Notify.Transport == "nats" {
			producer, err := queue.NewProducer(cfg.NATS.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to nats: %w", err)
			}
			defer producer.Close()
			if err := producer.EnsureStreams(ctx); err != nil {
				return err
			}
			sender = producer
		} else {
			mailer, err := notify.NewSMTPMailer(cfg.Mail)
			if err != nil {
				return err
			}
			sender = mailer
		}

		dispatcher = notify.NewDispatcher(sender, cfg.Notify)
		dispatcher.Start(ctx)
		defer dispatcher.Close()
		notifier = queuedNotifier{ctx: ctx, dispatcher: dispatcher}
	}

	pipeline := ingest.NewPipeline(minioStore, recognition.NewClient(cfg.Recognition), db, notifier, ingest.PipelineConfigFrom(cfg))
	orchestrator := ingest.NewOrchestrator(db, roster.NewLoader(db), pipeline, ingest.OrchestratorConfig{
		MaxPhotos: cfg.Upload.MaxPhotos,
		Workers:   cfg.Upload.Workers,
		DBTimeout: cfg.Upload.DBTimeout,
	})

	batches := chunk(paths, orchestrator.MaxPhotos())
	fmt.Printf("Found %d image(s), uploading in %d batch(es)\n", len(paths), len(batches))

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		uploaded, matched int
		failures          []string
	)
	for _, batch := range batches {
		jobs := make([]ingest.Job, len(batch))
		for i, path := range batch {
			jobs[i] = fileJob(path)
		}

		res, err := orchestrator.Run(ctx, ingest.Batch{
			EventID:        &eventID,
			PhotographerID: photographerID,
			Photos:         jobs,
			Observer: func(int, ingest.Status) {
				_ = bar.Add(1)
			},
		})
		if err != nil {
			fmt.Println()
			return err
		}

		for i, st := range res.Statuses {
			if !st.Success {
				failures = append(failures, fmt.Sprintf("%s: %s", batch[i], st.Message))
				continue
			}
			uploaded++
			matched += st.Matched
		}
	}
	fmt.Println()

	for _, f := range failures {
		fmt.Printf("Failed: %s\n", f)
	}
	fmt.Printf("\nUploaded %d of %d photo(s), %d attendee match(es)\n", uploaded, len(paths), matched)
	if dispatcher != nil {
		fmt.Println("Waiting for notifications to be sent...")
		dispatcher.Close()
		if dropped := dispatcher.Dropped(); dropped > 0 {
			fmt.Printf("%d notification(s) could not be queued\n", dropped)
		}
	}

	if uploaded == 0 {
		return fmt.Errorf("no photos were uploaded successfully")
	}
	return nil
}
