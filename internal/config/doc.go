// Package config загружает настройки процесса через viper.
//
// Источники: значения по умолчанию, ~/.config/workflow/config.yaml,
// .workflow.yaml проекта, файл --config и переменные окружения.
// Настройки workflow из файла (settings.timeout, settings.on_failure)
// имеют приоритет над workflow.default_timeout и workflow.on_failure.
package config
