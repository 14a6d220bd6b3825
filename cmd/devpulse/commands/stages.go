package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/devpulse/devpulse/internal/cycle"
	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/export"
	"github.com/devpulse/devpulse/internal/github"
	"github.com/devpulse/devpulse/internal/jira"
	"github.com/devpulse/devpulse/internal/server"
)

// Refresh stage names, in execution order.
const (
	stageGitHubCommits = "github_commits"
	stageGitHubPRs     = "github_prs"
	stageJiraIssues    = "jira_issues"
	stageSnapshot      = "dashboard_snapshot"
	stagePRTable       = "pr_table"
	stageCycles        = "issue_cycles"
)

// stageCount is the number of stages in a full refresh.
const stageCount = 6

// Event source labels for pipeline metrics.
const (
	sourceGitHub = "github"
	sourceJira   = "jira"
)

// runFetchStages runs the full refresh pipeline: raw event fetches,
// then the derived artifacts. Execution stops after the first failed
// stage so later stages never aggregate half-fetched data.
func (a *app) runFetchStages(ctx context.Context, useCache bool) []server.StageResult {
	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{stageGitHubCommits, func(ctx context.Context) error { return a.fetchCommits(ctx, useCache) }},
		{stageGitHubPRs, func(ctx context.Context) error { return a.fetchPRs(ctx, useCache) }},
		{stageJiraIssues, func(ctx context.Context) error { return a.fetchIssues(ctx, useCache) }},
		{stageSnapshot, a.rebuildSnapshot},
		{stagePRTable, a.rebuildPRTable},
		{stageCycles, a.rebuildCycles},
	}

	var results []server.StageResult

	for _, stage := range stages {
		start := time.Now()
		err := stage.run(ctx)

		result := server.StageResult{
			Stage:    stage.name,
			Success:  err == nil,
			Duration: time.Since(start).Seconds(),
		}
		if err != nil {
			result.Error = err.Error()
		}

		results = append(results, result)

		if err != nil {
			a.logger.Error("refresh stage failed", "stage", stage.name, "error", err)

			break
		}

		a.logger.Info("refresh stage done", "stage", stage.name, "duration", time.Since(start))
	}

	return results
}

func (a *app) fetchCommits(ctx context.Context, useCache bool) error {
	validateErr := a.cfg.GitHub.Validate()
	if validateErr != nil {
		return validateErr
	}

	client := github.NewClient(a.cfg.GitHub.GraphQLURL, a.cfg.GitHub.Token)
	fetcher := github.NewCommitFetcher(client, a.commits, a.logger, a.cfg.GitHub.Since)

	for _, org := range a.cfg.GitHub.Organizations {
		commitsByScope, err := fetcher.FetchOrg(ctx, org, useCache)
		if err != nil {
			return fmt.Errorf("fetch commits for %s: %w", org, err)
		}

		a.recordFetched(ctx, sourceGitHub, countScoped(commitsByScope))
	}

	return nil
}

func (a *app) fetchPRs(ctx context.Context, useCache bool) error {
	validateErr := a.cfg.GitHub.Validate()
	if validateErr != nil {
		return validateErr
	}

	client := github.NewClient(a.cfg.GitHub.GraphQLURL, a.cfg.GitHub.Token)
	fetcher := github.NewPRFetcher(client, a.prs, a.logger, a.cfg.GitHub.Since)

	for _, org := range a.cfg.GitHub.Organizations {
		prsByScope, err := fetcher.FetchOrg(ctx, org, useCache)
		if err != nil {
			return fmt.Errorf("fetch prs for %s: %w", org, err)
		}

		a.recordFetched(ctx, sourceGitHub, countScoped(prsByScope))
	}

	return nil
}

func (a *app) fetchIssues(ctx context.Context, useCache bool) error {
	validateErr := a.cfg.Jira.Validate()
	if validateErr != nil {
		return validateErr
	}

	client := jira.NewClient(a.cfg.Jira.BaseURL, a.cfg.Jira.Email, a.cfg.Jira.APIToken)

	projects, projectsErr := client.Projects(ctx)
	if projectsErr != nil {
		return projectsErr
	}

	keys := make([]string, 0, len(projects))
	for _, project := range projects {
		keys = append(keys, project.Key)
	}

	fetcher := jira.NewIssueFetcher(client, a.issues, a.logger, a.cfg.Jira.Since)

	issuesByScope, err := fetcher.FetchProjects(ctx, keys, useCache)
	if err != nil {
		return err
	}

	a.recordFetched(ctx, sourceJira, countScoped(issuesByScope))

	return nil
}

func (a *app) rebuildSnapshot(ctx context.Context) error {
	start := time.Now()

	_, err := a.dashboards().Refresh(true)
	if err != nil {
		return err
	}

	if a.pipeline != nil {
		a.pipeline.RecordBuild(ctx, time.Since(start))
	}

	return nil
}

func (a *app) recordFetched(ctx context.Context, source string, count int) {
	if a.pipeline != nil {
		a.pipeline.RecordFetched(ctx, source, count)
	}
}

func countScoped[T any](byScope map[string][]T) int {
	var total int
	for _, events := range byScope {
		total += len(events)
	}

	return total
}

func (a *app) rebuildPRTable(context.Context) error {
	_, err := export.BuildPRTable(a.prs, a.cfg.Data.ExportsDir(), time.Now())

	return err
}

func (a *app) rebuildCycles(context.Context) error {
	scopes, scopesErr := a.issues.Scopes()
	if scopesErr != nil {
		return scopesErr
	}

	byScope := make(map[string][]event.Issue, len(scopes))

	for _, scope := range scopes {
		issues, loadErr := a.issues.Load(scope)
		if loadErr != nil {
			return loadErr
		}

		byScope[scope] = issues
	}

	return export.WriteCycles(a.cfg.Data.ExportsDir(), cycle.ExtractAll(byScope))
}
