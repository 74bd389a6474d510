package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/shaiso/Orchestra/internal/engine"
)

// watchDebounce — пауза после изменения файла перед повторной проверкой.
// Редакторы часто пишут файл в несколько приёмов.
const watchDebounce = 200 * time.Millisecond

func newValidateCmd(app *App) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow file without executing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			reg, err := app.newRegistry()
			if err != nil {
				return err
			}
			parser := app.newParser(reg)

			err = validateFile(out, parser, path)
			if !watch {
				return err
			}

			return watchFile(cmd.Context(), path, func() {
				out.Info(fmt.Sprintf("\n[%s] %s changed", time.Now().Format(time.TimeOnly), filepath.Base(path)))
				validateFile(out, parser, path)
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-validate whenever the file changes")

	return cmd
}

// validateFile проверяет файл и печатает результат.
func validateFile(out *Output, parser *engine.Parser, path string) error {
	out.Info(fmt.Sprintf("Validating workflow: %s", path))

	wf, err := parser.Parse(path)
	if err != nil {
		return reportConfigError(out, err)
	}

	if out.JSONMode() {
		out.JSON(map[string]any{
			"valid":    true,
			"source":   path,
			"workflow": wf,
		})
		return nil
	}

	out.Success("Workflow is valid!")
	out.Println("\nWorkflow Details:")
	out.WorkflowDetails(wf)
	out.TaskList(wf)
	out.Println()
	out.Println(engine.GenerateDependencyGraph(wf))
	return nil
}

// watchFile вызывает onChange после каждого изменения файла, пока ctx не отменён.
//
// Наблюдается каталог, а не файл: редакторы сохраняют через rename,
// после чего наблюдение за самим файлом теряется.
func watchFile(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				onChange()
				continue
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
