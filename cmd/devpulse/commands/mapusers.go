package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/devpulse/devpulse/internal/config"
	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/mapping"
	"github.com/devpulse/devpulse/internal/stats"
)

// NewMapUsersCommand creates the map-users subcommand. It discovers
// usernames from the commit caches and assignee emails from the issue
// caches, matches them, and writes the mapping table.
func NewMapUsersCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "map-users",
		Short: "Build the GitHub-to-Jira identity mapping table",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := loadApp(configPath, verbose)
			if err != nil {
				return err
			}

			return a.mapUsers()
		},
	}

	cmd.Flags().StringVar(&configPath, configFlag, "", configFlagUsage)
	cmd.Flags().BoolVarP(&verbose, verboseFlag, "v", false, verboseFlagUsage)

	return cmd
}

func (a *app) mapUsers() error {
	usernames, usernamesErr := a.cachedUsernames()
	if usernamesErr != nil {
		return usernamesErr
	}

	emails, emailsErr := a.cachedAssigneeEmails()
	if emailsErr != nil {
		return emailsErr
	}

	a.logger.Info("identities discovered", "usernames", len(usernames), "emails", len(emails))

	denyList := a.cfg.Mapping.DenyList
	if len(denyList) == 0 {
		denyList = config.DefaultMappingDenyList
	}

	matcher := mapping.NewMatcher(a.cfg.Mapping.Threshold, a.cfg.Mapping.Suffixes, denyList)
	mappings, unmatched := matcher.Build(usernames, emails)

	store, storeErr := a.mappingStore()
	if storeErr != nil {
		return storeErr
	}

	writeErr := store.Write(mappings)
	if writeErr != nil {
		return writeErr
	}

	for _, m := range mappings {
		color.New(color.FgGreen).Fprintf(os.Stdout, "  %s -> %s\n", m.Source, m.Tracker)
	}

	if len(unmatched) > 0 {
		color.New(color.FgYellow).Fprintf(os.Stdout, "unmatched (%d):\n", len(unmatched))

		for _, username := range unmatched {
			fmt.Fprintf(os.Stdout, "  - %s\n", username)
		}
	}

	a.logger.Info("mapping table written", "matched", len(mappings), "unmatched", len(unmatched))

	return nil
}

// cachedUsernames lists the distinct commit authors across all scopes.
func (a *app) cachedUsernames() ([]string, error) {
	scopes, scopesErr := a.commits.Scopes()
	if scopesErr != nil {
		return nil, scopesErr
	}

	var commits []event.Commit

	for _, scope := range scopes {
		scoped, loadErr := a.commits.Load(scope)
		if loadErr != nil {
			return nil, loadErr
		}

		commits = append(commits, scoped...)
	}

	return stats.Actors(commits), nil
}

// cachedAssigneeEmails lists the distinct assignee emails across all
// cached issues.
func (a *app) cachedAssigneeEmails() ([]string, error) {
	scopes, scopesErr := a.issues.Scopes()
	if scopesErr != nil {
		return nil, scopesErr
	}

	set := make(map[string]struct{})

	for _, scope := range scopes {
		issues, loadErr := a.issues.Load(scope)
		if loadErr != nil {
			return nil, loadErr
		}

		for i := range issues {
			email := issues[i].AssigneeEmail()
			if email != "" {
				set[email] = struct{}{}
			}
		}
	}

	emails := make([]string, 0, len(set))
	for email := range set {
		emails = append(emails, email)
	}

	sort.Strings(emails)

	return emails, nil
}
