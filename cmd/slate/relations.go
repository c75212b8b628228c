package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Work with comments on an issue",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <issue-id> <content>",
	Short: "Add a comment to an issue",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		comment, err := apiClient.CreateComment(cmdContext(), args[0], args[1])
		if err != nil {
			fatal("%v", err)
		}
		if jsonOutput {
			printJSON(comment)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Added comment %s\n", green("✓"), comment.ID)
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list <issue-id>",
	Short: "List comments on an issue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		comments, err := apiClient.ListComments(cmdContext(), args[0])
		if err != nil {
			fatal("%v", err)
		}
		if jsonOutput {
			printJSON(comments)
			return
		}
		if len(comments) == 0 {
			fmt.Println("No comments")
			return
		}
		dim := color.New(color.Faint).SprintFunc()
		for _, c := range comments {
			fmt.Printf("%s %s\n  %s\n", dim(c.CreatedAt.Format("2006-01-02 15:04")), dim(c.ID), c.Content)
		}
	},
}

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage labels",
}

var labelCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a label",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		labelColor, _ := cmd.Flags().GetString("color")
		label, err := apiClient.CreateLabel(cmdContext(), args[0], labelColor)
		if err != nil {
			fatal("%v", err)
		}
		if jsonOutput {
			printJSON(label)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created label %q (%s)\n", green("✓"), label.Name, label.ID)
	},
}

var labelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List labels",
	Run: func(cmd *cobra.Command, args []string) {
		labels, err := apiClient.ListLabels(cmdContext())
		if err != nil {
			fatal("%v", err)
		}
		if jsonOutput {
			printJSON(labels)
			return
		}
		for _, l := range labels {
			fmt.Printf("%-24s %s\n", l.Name, l.ID)
		}
	},
}

var labelDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a label",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := apiClient.DeleteLabel(cmdContext(), args[0]); err != nil {
			fatal("%v", err)
		}
		fmt.Println("Deleted label")
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectColor, _ := cmd.Flags().GetString("color")
		project, err := apiClient.CreateProject(cmdContext(), args[0], projectColor)
		if err != nil {
			fatal("%v", err)
		}
		if jsonOutput {
			printJSON(project)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created project %q (%s)\n", green("✓"), project.Name, project.ID)
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects with progress",
	Run: func(cmd *cobra.Command, args []string) {
		projects, err := apiClient.ListProjects(cmdContext())
		if err != nil {
			fatal("%v", err)
		}
		if jsonOutput {
			printJSON(projects)
			return
		}
		for _, p := range projects {
			fmt.Printf("%-24s %d/%d done (%s)\n", p.Name, p.DoneCount, p.IssueCount, p.Status)
		}
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project (issues are kept)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := apiClient.DeleteProject(cmdContext(), args[0]); err != nil {
			fatal("%v", err)
		}
		fmt.Println("Deleted project")
	},
}

func init() {
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentListCmd)

	labelCreateCmd.Flags().String("color", "", "Label color, e.g. #d73a4a")
	labelCmd.AddCommand(labelCreateCmd)
	labelCmd.AddCommand(labelListCmd)
	labelCmd.AddCommand(labelDeleteCmd)

	projectCreateCmd.Flags().String("color", "", "Project color")
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}
