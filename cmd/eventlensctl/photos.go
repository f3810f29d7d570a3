package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var photosCmd = &cobra.Command{
	Use:   "photos <event-id>",
	Short: "List the photos of an event and the attendees recognised in them",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhotos,
}

func init() {
	rootCmd.AddCommand(photosCmd)
}

func runPhotos(cmd *cobra.Command, args []string) error {
	eventID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", args[0], err)
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

	photos, err := db.ListEventPhotos(ctx, eventID)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		fmt.Println("No photos uploaded for this event.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tUPLOADED\tATTENDEES\tURL")
	for _, p := range photos {
		links, err := db.ListPhotoAttendees(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.ID, p.CreatedAt.Format("2006-01-02 15:04"), len(links), p.URL)
	}
	return w.Flush()
}
