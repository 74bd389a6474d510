// Workflow — оркестрация мультиагентных workflow.
//
// Использование:
//
//	workflow [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	run       Выполнить workflow
//	validate  Проверить файл workflow
//	list      Найти файлы workflow
//	agents    Список видов агентов
//	schedule  Запуск по cron-расписанию
//	events    Чтение событий из RabbitMQ
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/shaiso/Orchestra/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := cli.NewRootCmd(version).ExecuteContext(ctx)
	if err == nil {
		return
	}

	// Итог и дефекты workflow уже выведены командой
	if !errors.Is(err, cli.ErrWorkflowFailed) && !errors.Is(err, cli.ErrInvalidWorkflow) {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	}
	cancel()
	os.Exit(1)
}
