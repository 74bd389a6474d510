package cli

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Orchestra/internal/engine"
)

// DefaultSearchDirs — каталоги workflow относительно текущего каталога.
var DefaultSearchDirs = []string{
	filepath.Join(".claude", "workflows"),
	"workflows",
}

// WorkflowEntry — найденный файл workflow.
type WorkflowEntry struct {
	Path        string `json:"path"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Tasks       int    `json:"tasks"`
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
}

func newListCmd(app *App) *cobra.Command {
	var searchPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available workflow files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			dirs := make([]string, 0, len(DefaultSearchDirs)+1)
			for _, d := range DefaultSearchDirs {
				dirs = append(dirs, filepath.Join(cwd, d))
			}
			dirs = append(dirs, searchPath)

			files, err := FindWorkflowFiles(dirs...)
			if err != nil {
				return err
			}

			if len(files) == 0 {
				if out.JSONMode() {
					out.JSON([]WorkflowEntry{})
					return nil
				}
				out.Warn("No workflow files found.")
				out.Println("\nCreate workflow files in:")
				for _, d := range DefaultSearchDirs {
					out.Printf("  - %s/\n", d)
				}
				return nil
			}

			reg, err := app.newRegistry()
			if err != nil {
				return err
			}

			entries, err := describeWorkflows(cmd, app.newParser(reg), files)
			if err != nil {
				return err
			}

			headers := []string{"PATH", "NAME", "TASKS", "DESCRIPTION"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rel := relativePath(cwd, e.Path)
				if !e.Valid {
					rows[i] = []string{rel, colorInvalid(), "-", ""}
					continue
				}
				rows[i] = []string{rel, e.Name, strconv.Itoa(e.Tasks), e.Description}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}

	cmd.Flags().StringVarP(&searchPath, "path", "p", ".", "Directory to search for workflows")

	return cmd
}

// describeWorkflows разбирает файлы параллельно. Порядок результата
// совпадает с порядком files.
func describeWorkflows(cmd *cobra.Command, parser *engine.Parser, files []string) ([]WorkflowEntry, error) {
	entries := make([]WorkflowEntry, len(files))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			entry := WorkflowEntry{Path: path}
			wf, err := parser.Parse(path)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Valid = true
				entry.Name = wf.Name
				entry.Description = wf.Description
				entry.Tasks = len(wf.Tasks)
			}
			entries[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// FindWorkflowFiles рекурсивно ищет .yaml, .yml и .json в каталогах dirs.
//
// Скрытые каталоги и node_modules пропускаются, отсутствующие каталоги
// игнорируются. Файл, найденный через несколько каталогов, возвращается один раз.
func FindWorkflowFiles(dirs ...string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if engine.IsWorkflowFile(path) && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

func relativePath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
