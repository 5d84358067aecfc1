package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solarekm/reaper/providers/aws"
)

// reposCmd represents the repos command
var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Report ECR repository scan configuration",
	Long: `List every ECR repository in the region and report whether image
scan-on-push is enabled.

Repositories with scanning disabled ship unscanned images; the report
flags them so they can be fixed.`,
	Example: `  reaper repos                     # Report for the configured region
  reaper repos --region eu-west-1  # Report for a specific region`,
	RunE: runRepos,
}

func init() {
	rootCmd.AddCommand(reposCmd)
}

func runRepos(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	clients, err := aws.NewClients(ctx, cfg.Region)
	if err != nil {
		return err
	}

	repos, err := aws.NewRepoAuditor(clients.ECR).ListRepositories(ctx)
	if err != nil {
		return err
	}

	writeRepoReport(os.Stdout, repos)
	return nil
}

// writeRepoReport prints the scan-on-push table plus summary counts
func writeRepoReport(out io.Writer, repos []aws.Repository) {
	if len(repos) == 0 {
		fmt.Fprintln(out, "No ECR repositories found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REPOSITORY\tSCAN ON PUSH\tTAGS\tCREATED")
	_, _ = fmt.Fprintln(w, "----------\t------------\t----\t-------")

	unscanned := 0
	for _, repo := range repos {
		scan := "enabled"
		if !repo.ScanOnPush {
			scan = "DISABLED"
			unscanned++
		}

		mutability := "immutable"
		if repo.TagsMutable {
			mutability = "mutable"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			repo.Name,
			scan,
			mutability,
			repo.CreatedAt.Format("2006-01-02"),
		)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%d repositories", len(repos))
	if unscanned > 0 {
		fmt.Fprintf(out, ", ⚠️  %d without scan-on-push", unscanned)
	}
	fmt.Fprintln(out)
}
