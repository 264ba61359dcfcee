package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/blihweb/blihweb/pkg/session"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

var (
	isTerminal       = true
	noColorRequested = false
)

const (
	BlihctlInteractive        = "BLIHCTL_INTERACTIVE"
	BlihctlInteractiveDisable = "no"
	DeathMessage              = "Error executing command: {{.Error|red}}\n"
	successMessage            = "{{.Text|green}}\n"
)

//nolint:gochecknoinits
func init() {
	// disable colors if we're not attached to interactive TTY
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv(BlihctlInteractive) == BlihctlInteractiveDisable {
		DisableColors()
	}
}

func DisableColors() {
	text.DisableColors()
	isTerminal = false
}

type Table struct {
	Headers []interface{}
	Rows    [][]interface{}
}

func WriteTo(tpl string, data interface{}, w io.Writer) {
	templ := template.New("output")
	templ.Funcs(template.FuncMap{
		"red": func(arg interface{}) string {
			return text.FgHiRed.Sprint(arg)
		},
		"yellow": func(arg interface{}) string {
			return text.FgHiYellow.Sprint(arg)
		},
		"green": func(arg interface{}) string {
			return text.FgHiGreen.Sprint(arg)
		},
		"bold": func(arg interface{}) string {
			return text.Bold.Sprint(arg)
		},
		"date": func(ts time.Time) string {
			if ts.IsZero() {
				return "-"
			}
			return ts.Local().Format(time.DateTime)
		},
		"table": func(tab *Table) string {
			if isTerminal {
				buf := new(bytes.Buffer)
				t := table.NewWriter()
				t.SetOutputMirror(buf)
				t.AppendHeader(tab.Headers)
				for _, row := range tab.Rows {
					t.AppendRow(row)
				}
				t.Render()
				return buf.String()
			}
			var b strings.Builder
			for _, row := range tab.Rows {
				for ic, cell := range row {
					b.WriteString(fmt.Sprint(cell))
					if ic < len(row)-1 {
						b.WriteString("\t")
					}
				}
				b.WriteString("\n")
			}
			return b.String()
		},
	})
	t := template.Must(templ.Parse(tpl))
	err := t.Execute(w, data)
	if err != nil {
		panic(err)
	}
}

func Write(tpl string, data interface{}) {
	WriteTo(tpl, data, rootCmd.OutOrStdout())
}

func Die(err string, code int) {
	WriteTo(DeathMessage, struct{ Error string }{err}, os.Stderr)
	os.Exit(code)
}

func DieFmt(msg string, args ...interface{}) {
	Die(fmt.Sprintf(msg, args...), 1)
}

// DieErr prints the message area text of session errors, the error text otherwise.
func DieErr(err error) {
	errData := struct{ Error string }{}
	var sErr *session.Error
	if errors.As(err, &sErr) {
		errData.Error = sErr.Text
	}
	if errData.Error == "" {
		errData.Error = err.Error()
	}
	WriteTo(DeathMessage, errData, os.Stderr)
	os.Exit(1)
}

// PrintMessage prints the session message area.  Nothing is printed when it is empty.
func PrintMessage(w io.Writer, msg session.Message) {
	switch msg.Kind {
	case session.MessageSuccess:
		if msg.Text != "" {
			WriteTo(successMessage, msg, w)
		}
	case session.MessageError:
		WriteTo(DeathMessage, struct{ Error string }{msg.Text}, w)
	}
}

func PrintTable(w io.Writer, rows [][]interface{}, headers []interface{}) {
	WriteTo("{{.Table | table -}}\n", struct{ Table *Table }{&Table{Headers: headers, Rows: rows}}, w)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func Must[T any](v T, err error) T {
	if err != nil {
		DieErr(err)
	}
	return v
}
