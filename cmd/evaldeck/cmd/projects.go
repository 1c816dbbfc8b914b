package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	projectsLimit   int
	projectsOrgName string
	projectsName    string
	projectsTags    []string
)

// projectsCmd represents the projects command group.
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage Braintrust projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		projects, err := client.ListProjects(cmd.Context(), projectsOrgName, projectsLimit)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, projects)
	},
}

var projectsGetCmd = &cobra.Command{
	Use:   "get <project-id>",
	Short: "Get a specific project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		project, err := client.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *project)
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		tags := projectsTags
		if !cmd.Flags().Changed("tag") {
			tags = nil
		}
		project, err := client.CreateProject(cmd.Context(), projectsName, projectsOrgName, tags)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *project)
	},
}

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <project-id>",
	Short: "Update a project's name or tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if projectsName == "" && !cmd.Flags().Changed("tag") {
			return fmt.Errorf("no update fields provided: set --name and/or --tag")
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		tags := projectsTags
		if !cmd.Flags().Changed("tag") {
			tags = nil
		}
		project, err := client.UpdateProject(cmd.Context(), args[0], projectsName, tags)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *project)
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.DeleteProject(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !machineOutput() {
			fmt.Printf("Deleted project %s\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsGetCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsUpdateCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)

	projectsListCmd.Flags().IntVar(&projectsLimit, "limit", 100, "Maximum number of projects to return")
	projectsListCmd.Flags().StringVar(&projectsOrgName, "org-name", "", "Filter by organization name")

	projectsCreateCmd.Flags().StringVar(&projectsName, "name", "", "Project name")
	projectsCreateCmd.Flags().StringVar(&projectsOrgName, "org-name", "", "Organization name")
	projectsCreateCmd.Flags().StringSliceVar(&projectsTags, "tag", nil, "Project tag (repeatable)")
	_ = projectsCreateCmd.MarkFlagRequired("name")

	projectsUpdateCmd.Flags().StringVar(&projectsName, "name", "", "New project name")
	projectsUpdateCmd.Flags().StringSliceVar(&projectsTags, "tag", nil, "Replacement project tag (repeatable)")
}
