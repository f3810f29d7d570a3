package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/eventlens/internal/auth"
	"github.com/your-org/eventlens/internal/models"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage events",
}

var eventCreateCmd = &cobra.Command{
	Use:   "create <code> <name>",
	Short: "Create an event",
	Long: `Create an event that photographers and attendees can join by code.

Example:
  eventlensctl event create GALA26 "Spring Gala" --location "Main Hall" --date 2026-05-01`,
	Args: cobra.ExactArgs(2),
	RunE: runEventCreate,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email> <name>",
	Short: "Create a user row",
	Long: `Create a user row for local development. The printed id must match the
subject claim of the user's access token.`,
	Args: cobra.ExactArgs(2),
	RunE: runUserCreate,
}

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(eventCreateCmd)
	eventCreateCmd.Flags().String("location", "", "Event location")
	eventCreateCmd.Flags().String("date", "", "Event date (YYYY-MM-DD), defaults to today")

	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCreateCmd.Flags().String("role", auth.RoleAttendee, "User role (photographer or attendee)")
}

func runEventCreate(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if s := mustGetString(cmd, "date"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", s, err)
		}
		date = d
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

	ev := &models.Event{
		Code:     strings.TrimSpace(args[0]),
		Name:     args[1],
		Location: mustGetString(cmd, "location"),
		Date:     date,
	}
	if err := db.CreateEvent(ctx, ev); err != nil {
		return err
	}
	fmt.Printf("Created event %s (%s) with id %s\n", ev.Name, ev.Code, ev.ID)
	return nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	role := mustGetString(cmd, "role")
	if role != auth.RolePhotographer && role != auth.RoleAttendee {
		return fmt.Errorf("invalid --role %q: must be %s or %s", role, auth.RolePhotographer, auth.RoleAttendee)
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

	id, err := db.CreateUser(ctx, args[0], args[1], role)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s %s with id %s\n", role, args[0], id)
	return nil
}
