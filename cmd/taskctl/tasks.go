package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Strob0t/taskdeck/internal/domain/task"
)

func listCmd(g *globals) *cobra.Command {
	var q task.ListQuery
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest update first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.Status = task.Status(status)
			res, err := g.client().List(cmd.Context(), q)
			if err != nil {
				return err
			}
			return g.print(res, func() {
				printTable(res.Tasks)
				p := res.Pagination
				fmt.Printf("\npage %d/%d, %d task(s)\n", p.Page, max(p.TotalPages, 1), p.Total)
			})
		},
	}
	cmd.Flags().IntVarP(&q.Page, "page", "p", 1, "Page number")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", task.DefaultPageLimit, "Page size")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (todo, in-progress, done)")
	cmd.Flags().StringVar(&q.Project, "project", "", "Filter by project")
	return cmd
}

func getCmd(g *globals) *cobra.Command {
	var stats bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.client()
			t, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var st *task.Stats
			if stats {
				if st, err = c.Stats(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			return g.print(map[string]any{"task": t, "stats": st}, func() {
				printTask(t)
				if st != nil {
					fmt.Printf("File:     %d bytes, modified %s\n", st.Size, task.FormatTime(st.ModifiedTime))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "Include file metadata")
	return cmd
}

func createCmd(g *globals) *cobra.Command {
	var slug, status, project, content string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := task.CreateRequest{Title: strings.Join(args, " ")}
			flags := cmd.Flags()
			if flags.Changed("slug") {
				req.Slug = &slug
			}
			if flags.Changed("status") {
				st := task.Status(status)
				req.Status = &st
			}
			if flags.Changed("project") {
				req.Project = &project
			}
			if flags.Changed("content") {
				req.Content = &content
			}
			t, err := g.client().Create(cmd.Context(), req, "")
			if err != nil {
				return err
			}
			return g.print(t, func() { fmt.Printf("created %s (%s)\n", t.ID, t.Slug) })
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "URL-friendly name")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Initial status")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().StringVarP(&content, "content", "c", "", "Markdown body")
	return cmd
}

func updateCmd(g *globals) *cobra.Command {
	var title, slug, status, project, content string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req task.UpdateRequest
			flags := cmd.Flags()
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("slug") {
				req.Slug = &slug
			}
			if flags.Changed("status") {
				st := task.Status(status)
				req.Status = &st
			}
			if flags.Changed("project") {
				req.Project = &project
			}
			if flags.Changed("content") {
				req.Content = &content
			}
			t, err := g.client().Update(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return g.print(t, func() { printTask(t) })
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&slug, "slug", "", "New slug")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status")
	cmd.Flags().StringVar(&project, "project", "", "New project")
	cmd.Flags().StringVarP(&content, "content", "c", "", "New markdown body")
	return cmd
}

func deleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.client().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return g.print(map[string]any{"success": true, "id": args[0]}, func() { fmt.Println("deleted", args[0]) })
		},
	}
}

func doCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "do <command...>",
		Short: "Run a natural-language command, e.g. taskctl do 'create task: \"Write docs\"'",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := g.client().Command(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return g.print(res, func() {
				fmt.Println(res.Message)
				switch {
				case res.Help != "":
					fmt.Println(res.Help)
				case len(res.Tasks) > 0:
					printTable(res.Tasks)
				case res.Task != nil && res.Action == "show":
					printTask(res.Task)
				}
			})
		},
	}
}

func printTable(ts []task.Task) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROJECT\tTITLE\tUPDATED")
	for i := range ts {
		t := &ts[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Project, t.Title, task.FormatTime(t.Updated))
	}
	_ = w.Flush()
}

func printTask(t *task.Task) {
	fmt.Printf("ID:       %s\n", t.ID)
	fmt.Printf("Title:    %s\n", t.Title)
	fmt.Printf("Slug:     %s\n", t.Slug)
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Project:  %s\n", t.Project)
	fmt.Printf("Created:  %s\n", task.FormatTime(t.Created))
	fmt.Printf("Updated:  %s\n", task.FormatTime(t.Updated))
	if t.Content != "" {
		fmt.Printf("\n%s\n", t.Content)
	}
}
