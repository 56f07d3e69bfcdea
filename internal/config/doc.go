// Package config загружает конфигурацию relay-engine и relay-agent.
//
// Источники (в порядке приоритета):
//   - переменные окружения (RELAY_ADDR, DB_URL, RABBITMQ_URL,
//     RELAY_DISPATCH_MODE, RELAY_WORKFLOWS_DIR);
//   - YAML файл, путь из RELAY_CONFIG (необязательный);
//   - значения по умолчанию.
//
// Пример файла:
//
//	server:
//	  addr: ":8080"
//	engine:
//	  max_parallel: 8
//	  retention: 10m
//	  strict_references: true
//	dispatch:
//	  mode: http
//	  targets:
//	    - name: analyzer
//	      endpoint: http://analyzer:9000
//	      timeout: 30s
//	      retry_attempts: 3
//	      retry_delay: 1s
//	workflows_dir: ./workflows
//	schedules:
//	  - name: nightly
//	    workflow: data_analysis
//	    cron: "0 3 * * *"
//	    timezone: Europe/Moscow
package config
