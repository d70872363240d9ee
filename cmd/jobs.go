package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"syncworker/internal/clix"
	"syncworker/internal/models"
	"syncworker/internal/scheduler"
)

var jobsQueue string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect submitted sync jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync jobs in every state",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		queues := appInstance.Queues()
		if jobsQueue != "" {
			queues = []string{jobsQueue}
		}

		page, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}
		states, err := clix.ParseStates(cmd.Flags())
		if err != nil {
			return err
		}

		var all []scheduler.Status
		for _, q := range queues {
			sts, err := appInstance.Watcher.List(q)
			if err != nil {
				return err
			}
			all = append(all, filterStates(sts, states)...)
		}

		if len(all) == 0 {
			fmt.Println("No sync jobs found.")
			return nil
		}
		sortStatuses(all)
		start, end := page.Page(len(all))
		if start < end {
			renderStatusTable(os.Stdout, all[start:end])
		}
		fmt.Println(pageFooter(start, end, len(all)))
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the state and latest report of one sync job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		st, err := appInstance.Watcher.Find(args[0], appInstance.Queues()...)
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("no sync job with id %s (it may have expired)", args[0])
		}
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		renderStatusTable(os.Stdout, []scheduler.Status{st})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)

	jobsListCmd.Flags().StringVarP(&jobsQueue, "queue", "q", "", "Only list this queue")
	jobsListCmd.Flags().String("state", "", "Comma separated states to show (pending,scheduled,active,retrying,completed,failed)")
	jobsListCmd.Flags().Int("limit", 20, "Maximum number of jobs to show")
	jobsListCmd.Flags().Int("offset", 0, "Number of jobs to skip")
	jobsStatusCmd.Flags().Bool("json", false, "Print the status as JSON")
}

func pageFooter(start, end, total int) string {
	if start >= end {
		return fmt.Sprintf("No jobs in this page (%d jobs in total)", total)
	}
	return fmt.Sprintf("Showing %d-%d of %d jobs", start+1, end, total)
}

func filterStates(sts []scheduler.Status, states []string) []scheduler.Status {
	if len(states) == 0 {
		return sts
	}
	var out []scheduler.Status
	for _, st := range sts {
		for _, s := range states {
			if st.State == s {
				out = append(out, st)
				break
			}
		}
	}
	return out
}

func sortStatuses(sts []scheduler.Status) {
	sort.SliceStable(sts, func(i, j int) bool { return sts[i].JobID < sts[j].JobID })
}

func renderStatusTable(w io.Writer, sts []scheduler.Status) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job ID", "Queue", "State", "Retried", "Progress", "Result"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)

	for _, st := range sts {
		progress, result := "-", "-"
		if st.Report != nil {
			if p := st.Report.Progress; p != nil {
				progress = strconv.Itoa(p.Percent) + "% " + p.Message
			}
			if r := st.Report.Result; r != nil {
				result = formatResult(*r)
			}
		} else if st.LastErr != "" {
			result = color.RedString(st.LastErr)
		}
		table.Append([]string{
			st.JobID,
			st.Queue,
			st.State,
			fmt.Sprintf("%d/%d", st.Retried, st.MaxRetry),
			progress,
			result,
		})
	}
	table.Render()
}

func formatResult(r models.JobResult) string {
	if r.Succeeded() {
		return color.GreenString(r.Message)
	}
	return color.RedString(r.Message)
}
