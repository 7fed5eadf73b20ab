package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Triggers de rotación del server",
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Lista los triggers y su último resultado",
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := client().Tasks(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if outFormat == "json" {
			return printJSON(tasks)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Schedule", "State", "Last Run", "Next Run", "Runs", "Last Result"})
		for _, task := range tasks {
			state := "idle"
			if task.Running {
				state = color.BlueString("running")
			}
			lastRun := "never"
			if !task.LastRun.IsZero() {
				lastRun = humanAge(task.LastRun) + " ago"
			}
			nextRun := "n/a"
			if !task.NextRun.IsZero() {
				nextRun = "in " + time.Until(task.NextRun).Round(time.Second).String()
			}
			result := ""
			switch {
			case task.LastError != "":
				result = redCross + " " + task.LastError
			case task.Runs > 0:
				result = greenCheck
			}
			t.AppendRow(table.Row{
				color.New(color.Bold).Sprint(task.Name),
				task.Schedule, state, lastRun, nextRun,
				fmt.Sprintf("%d/%d", task.Runs-task.Failures, task.Runs),
				result,
			})
		}
		t.Render()
		return nil
	},
}

var tasksRunCmd = &cobra.Command{
	Use:   "run NAME",
	Short: "Corre un trigger a mano (generate, deprecate, purge, status-log)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := client().RunTask(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("running task: %w", err)
		}
		if outFormat == "json" {
			return printJSON(st)
		}
		if st.LastError != "" {
			return fmt.Errorf("task %s failed: %s", st.Name, st.LastError)
		}
		fmt.Printf("%s task %s done\n", greenCheck, color.New(color.Bold).Sprint(st.Name))
		return nil
	},
}

func init() {
	tasksCmd.AddCommand(tasksListCmd, tasksRunCmd)
	rootCmd.AddCommand(tasksCmd)
}
