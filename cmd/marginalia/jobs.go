package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/marginalia/internal/jobs"
	"github.com/pdiddy/marginalia/internal/vault"
	"github.com/pdiddy/marginalia/pkg/types"
)

const defaultJobRetention = 7 * 24 * time.Hour

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage background jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE:  runJobsList,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old finished jobs",
	RunE:  runJobsCleanup,
}

func init() {
	jobsListCmd.Flags().Bool("active", false, "show only pending and running jobs")
	jobsCleanupCmd.Flags().Duration("older-than", 0, "retention window (default 168h)")

	jobsCmd.AddCommand(jobsListCmd, jobsCancelCmd, jobsCleanupCmd)
	rootCmd.AddCommand(jobsCmd)
}

func openTracker(cmd *cobra.Command) (*vault.Vault, *jobs.Tracker, error) {
	v, err := vault.Open(vaultDir(cmd))
	if err != nil {
		return nil, nil, err
	}
	return v, jobs.New(v.Jobs(), nil), nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	v, tracker, err := openTracker(cmd)
	if err != nil {
		return err
	}
	defer v.Close()

	ctx := cmd.Context()
	activeOnly, _ := cmd.Flags().GetBool("active")

	var list []*types.Job
	if activeOnly {
		list, err = tracker.ListActive(ctx)
	} else {
		list, err = tracker.List(ctx)
	}
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No jobs.")
		return nil
	}

	for _, j := range list {
		line := fmt.Sprintf("%s  %-12s %-10s %3d%%", j.ID, j.Kind, j.Status, j.Progress)
		if j.Citekey != "" {
			line += "  " + j.Citekey
		}
		if j.Error != "" {
			line += "  (" + j.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	v, tracker, err := openTracker(cmd)
	if err != nil {
		return err
	}
	defer v.Close()

	ok, err := tracker.Cancel(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s is already finished or does not exist", args[0])
	}

	fmt.Printf("Cancelled %s\n", args[0])
	return nil
}

func runJobsCleanup(cmd *cobra.Command, args []string) error {
	v, tracker, err := openTracker(cmd)
	if err != nil {
		return err
	}
	defer v.Close()

	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan == 0 {
		olderThan = defaultJobRetention
	}

	n, err := tracker.Cleanup(cmd.Context(), olderThan)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d finished job(s)\n", n)
	return nil
}
