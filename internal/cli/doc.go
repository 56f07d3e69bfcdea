// Package cli реализует инструмент командной строки Relay.
//
// # Обзор
//
// CLI — клиентская утилита для relay-engine. Работает через HTTP API
// и не импортирует внутренние пакеты движка.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует запросы, разбор ответов
// (data / list / error) и ошибки.
//
//	client := cli.NewClient("http://localhost:8080")
//	started, err := client.StartExecution("data_analysis", map[string]any{"source": "data.csv"})
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию,
// JSON с флагом --json. Данные идут в stdout, сообщения в stderr:
//
//	relay exec status ID --json | jq .status
//
// ## Commands
//
//   - workflow: register FILE, list, show ID
//   - exec: start WORKFLOW [--input k=v] [--wait], list, status ID,
//     result ID, cancel ID, history ID
//   - target: list
//
// Группы создаются фабриками (NewWorkflowCmd, NewExecCmd, NewTargetCmd), которые
// принимают clientFn и outputFn: Client и Output создаются лениво,
// после разбора PersistentFlags.
package cli
