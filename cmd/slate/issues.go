package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/types"
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new issue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		assignee, _ := cmd.Flags().GetString("assignee")
		projectID, _ := cmd.Flags().GetString("project")
		parentID, _ := cmd.Flags().GetString("parent")
		labelIDs, _ := cmd.Flags().GetStringSlice("labels")

		req := &client.CreateIssueRequest{
			Title:       args[0],
			Description: description,
			Status:      status,
			Priority:    priority,
			Assignee:    assignee,
			LabelIDs:    labelIDs,
		}
		if projectID != "" {
			req.ProjectID = &projectID
		}
		if parentID != "" {
			req.ParentID = &parentID
		}

		issue, err := apiClient.CreateIssue(cmdContext(), req)
		if err != nil {
			fatal("%v", err)
		}

		if jsonOutput {
			printJSON(issue)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created issue #%d: %s\n", green("✓"), issue.Number, issue.Title)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues",
	Run: func(cmd *cobra.Command, args []string) {
		issues, err := apiClient.ListIssues(cmdContext())
		if err != nil {
			fatal("%v", err)
		}

		if jsonOutput {
			printJSON(issues)
			return
		}
		if len(issues) == 0 {
			fmt.Println("No issues found")
			return
		}
		for _, issue := range issues {
			printIssueLine(issue)
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an issue in detail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		issue, err := apiClient.GetIssue(cmdContext(), args[0])
		if err != nil {
			fatal("%v", err)
		}

		if jsonOutput {
			printJSON(issue)
			return
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s #%d\n", bold(issue.Title), issue.Number)
		fmt.Printf("  id:       %s\n", issue.ID)
		fmt.Printf("  status:   %s\n", colorStatus(issue.Status))
		fmt.Printf("  priority: %s\n", colorPriority(issue.Priority))
		if issue.Assignee != "" {
			fmt.Printf("  assignee: %s\n", issue.Assignee)
		}
		if len(issue.Labels) > 0 {
			names := make([]string, len(issue.Labels))
			for i, l := range issue.Labels {
				names[i] = l.Name
			}
			fmt.Printf("  labels:   %s\n", strings.Join(names, ", "))
		}
		if issue.CommentCount > 0 {
			fmt.Printf("  comments: %d\n", issue.CommentCount)
		}
		if issue.Description != "" {
			fmt.Printf("\n%s\n", issue.Description)
		}
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update issue fields",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		updates := map[string]interface{}{}
		for flagName, field := range map[string]string{
			"title":       "title",
			"description": "description",
			"status":      "status",
			"priority":    "priority",
			"assignee":    "assignee",
			"parent":      "parent_id",
		} {
			if cmd.Flags().Changed(flagName) {
				v, _ := cmd.Flags().GetString(flagName)
				updates[field] = v
			}
		}
		if cmd.Flags().Changed("labels") {
			labelIDs, _ := cmd.Flags().GetStringSlice("labels")
			updates["label_ids"] = labelIDs
		}
		if len(updates) == 0 {
			fatal("nothing to update; pass at least one field flag")
		}

		issue, err := apiClient.UpdateIssue(cmdContext(), args[0], updates)
		if err != nil {
			fatal("%v", err)
		}

		if jsonOutput {
			printJSON(issue)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Updated issue #%d\n", green("✓"), issue.Number)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more issues",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			if err := apiClient.DeleteIssue(cmdContext(), args[0]); err != nil {
				fatal("%v", err)
			}
			fmt.Println("Deleted 1 issue")
			return
		}
		n, err := apiClient.BatchDeleteIssues(cmdContext(), args)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Deleted %d issues\n", n)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search issues by title and description",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		results, err := apiClient.SearchIssues(cmdContext(), strings.Join(args, " "), limit)
		if err != nil {
			fatal("%v", err)
		}

		if jsonOutput {
			printJSON(results)
			return
		}
		if len(results) == 0 {
			fmt.Println("No matches")
			return
		}
		for _, r := range results {
			printIssueLine(r.Issue)
		}
	},
}

func printIssueLine(issue *types.Issue) {
	number := color.New(color.FgCyan).Sprintf("#%-4d", issue.Number)
	fmt.Printf("%s %s %s %s\n", number, colorStatus(issue.Status), colorPriority(issue.Priority), issue.Title)
}

func colorStatus(status types.Status) string {
	switch status {
	case types.StatusDone:
		return color.New(color.FgGreen).Sprint(status)
	case types.StatusInProgress:
		return color.New(color.FgYellow).Sprint(status)
	case types.StatusCancelled:
		return color.New(color.FgRed).Sprint(status)
	default:
		return string(status)
	}
}

func colorPriority(priority types.Priority) string {
	switch priority {
	case types.PriorityUrgent:
		return color.New(color.FgRed, color.Bold).Sprint(priority)
	case types.PriorityHigh:
		return color.New(color.FgRed).Sprint(priority)
	case types.PriorityMedium:
		return color.New(color.FgYellow).Sprint(priority)
	default:
		return string(priority)
	}
}

func init() {
	createCmd.Flags().StringP("description", "d", "", "Issue description")
	createCmd.Flags().StringP("status", "s", "", "Initial status")
	createCmd.Flags().StringP("priority", "p", "", "Priority (urgent, high, medium, low, none)")
	createCmd.Flags().StringP("assignee", "a", "", "Assignee")
	createCmd.Flags().String("project", "", "Project id")
	createCmd.Flags().String("parent", "", "Parent issue id")
	createCmd.Flags().StringSliceP("labels", "l", nil, "Label ids")

	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().StringP("status", "s", "", "New status")
	updateCmd.Flags().StringP("priority", "p", "", "New priority")
	updateCmd.Flags().StringP("assignee", "a", "", "New assignee")
	updateCmd.Flags().String("parent", "", "New parent issue id")
	updateCmd.Flags().StringSliceP("labels", "l", nil, "Replacement label ids")

	searchCmd.Flags().Int("limit", 0, "Maximum number of results")
}
