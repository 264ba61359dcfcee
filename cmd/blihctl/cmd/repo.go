package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/blihweb/blihweb/pkg/acl"
	"github.com/blihweb/blihweb/pkg/session"
	"github.com/blihweb/blihweb/pkg/state"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const repoShowTemplate = `{{"Repository:" | bold}} {{.Name}}
{{"UUID:" | bold}}       {{.UUID}}
{{"Created:" | bold}}    {{.Created | date}}
{{- if .Description}}
{{"Description:" | bold}} {{.Description}}
{{- end}}
{{if .ACL.Rows}}{{.ACL | table}}{{else}}{{"No ACL" | yellow}}
{{end -}}
`

// repoCmd represents the repo command
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage repositories and their ACL",
}

func repositoryRows(repos []state.Repository) [][]interface{} {
	rows := make([][]interface{}, len(repos))
	for i, repo := range repos {
		name := repo.Name
		if name == "" {
			name = "(no name)"
		}
		if repo.RecentlyCreated {
			name += " " + recentTag()
		}
		rows[i] = []interface{}{name, repo.UUID}
	}
	return rows
}

func runRepoList(ctx context.Context, sess *session.Session, w io.Writer, pattern string) error {
	match, err := nameMatcher(pattern)
	if err != nil {
		return err
	}
	repos, err := sess.Repositories(ctx)
	if err != nil {
		return err
	}
	shown := repos[:0:0]
	for _, r := range repos {
		if match(r.Name) {
			shown = append(shown, r)
		}
	}
	PrintTable(w, repositoryRows(shown), []interface{}{"Repository", "UUID"})
	PrintMessage(w, sess.Message())
	return nil
}

func aclRows(set acl.Set) [][]interface{} {
	rows := make([][]interface{}, len(set))
	for i, e := range set {
		rows[i] = []interface{}{e.User, check(e.Read), check(e.Write), check(e.Admin)}
	}
	return rows
}

func check(b bool) string {
	if b {
		return "x"
	}
	return ""
}

func runRepoShow(ctx context.Context, sess *session.Session, w io.Writer, name string) error {
	view, err := sess.OpenRepository(ctx, name)
	if err != nil {
		return err
	}
	repo := view.Repository
	WriteTo(repoShowTemplate, struct {
		Name        string
		UUID        string
		Created     time.Time
		Description string
		ACL         *Table
	}{
		Name:        repo.Name,
		UUID:        repo.UUID,
		Created:     repo.CreationTime,
		Description: repo.Description,
		ACL:         &Table{Headers: []interface{}{"User", "Read", "Write", "Admin"}, Rows: aclRows(view.ACL)},
	}, w)
	return nil
}

func runRepoCreate(ctx context.Context, sess *session.Session, w io.Writer, name string, initial acl.Set) error {
	if err := sess.CreateRepository(ctx, name, initial); err != nil {
		return err
	}
	PrintMessage(w, sess.Message())
	return nil
}

func runRepoDelete(ctx context.Context, sess *session.Session, w io.Writer, name string) error {
	if err := sess.DeleteRepository(ctx, name); err != nil {
		return err
	}
	PrintMessage(w, sess.Message())
	return nil
}

// selectRepository lets the user pick a repository when none was named.
func selectRepository(ctx context.Context, sess *session.Session) (string, error) {
	repos, err := sess.Repositories(ctx)
	if err != nil {
		return "", err
	}
	if len(repos) == 0 {
		return "", fmt.Errorf("%w: no repositories", session.ErrRepositoryNotFound)
	}
	items := make([]string, len(repos))
	for i, repo := range repos {
		items[i] = repo.Name
		if items[i] == "" {
			items[i] = repo.UUID
		}
	}
	sel := promptui.Select{
		Label: "Repository",
		Items: items,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index]), strings.ToLower(input))
		},
	}
	_, name, err := sel.Run()
	return name, err
}

// recentTag marks entries created or uploaded during this session.
func recentTag() string {
	if isTerminal {
		return "(new)"
	}
	return "*"
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(repoCmd)
}
