package domain

import "time"

// Значения по умолчанию, которые использует Builder.
const (
	DefaultTaskTimeout     = 300 * time.Second
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = time.Second
	DefaultWorkflowTimeout = time.Hour
)

// TaskDefinition — определение задачи в workflow.
//
// Задача адресована внешнему исполнителю (Target) и вызывает на нём
// операцию Operation с входами Inputs. Значение входа — либо литерал,
// либо ссылка вида ${variable} / ${task_id.output}.
type TaskDefinition struct {
	// ID — уникальный идентификатор задачи в рамках workflow.
	ID string `json:"id" yaml:"id"`

	// Target — имя внешнего исполнителя (framework), которому отправляется задача.
	Target string `json:"target" yaml:"target"`

	// Operation — имя операции на стороне исполнителя.
	Operation string `json:"operation" yaml:"operation"`

	// Inputs — входные параметры (литералы или ссылки ${...}).
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Outputs — имена выходов, которые задача должна вернуть.
	// Попадают в переменные execution как "<task_id>.<output>".
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// DependsOn — ID задач, которые должны завершиться до запуска этой.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// TimeoutSec — таймаут выполнения в секундах (применяет dispatch channel).
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`

	// RetryAttempts — количество повторных попыток (применяет dispatch channel).
	// nil — политика target по умолчанию, 0 — без повторов.
	RetryAttempts *int `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty"`

	// RetryDelayMs — задержка между попытками в миллисекундах.
	RetryDelayMs int `json:"retry_delay_ms,omitempty" yaml:"retry_delay_ms,omitempty"`
}

// Timeout возвращает таймаут задачи (0 — не задан).
func (t *TaskDefinition) Timeout() time.Duration {
	return time.Duration(t.TimeoutSec) * time.Second
}

// Retries возвращает количество повторов и признак того, что оно задано.
func (t *TaskDefinition) Retries() (int, bool) {
	if t.RetryAttempts == nil {
		return 0, false
	}
	return *t.RetryAttempts, true
}

// RetryDelay возвращает задержку между попытками.
func (t *TaskDefinition) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelayMs) * time.Millisecond
}

// WorkflowDefinition — определение workflow: упорядоченный список задач.
//
// Создаётся один раз (Builder или загрузчиком из файла), регистрируется
// в движке и после этого не изменяется. StartTasks и EndTasks вычисляются
// при регистрации.
type WorkflowDefinition struct {
	// ID — уникальный идентификатор workflow.
	ID string `json:"id" yaml:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name" yaml:"name"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Tasks — задачи в порядке объявления.
	Tasks []TaskDefinition `json:"tasks" yaml:"tasks"`

	// StartTasks — задачи без (существующих) зависимостей.
	StartTasks []string `json:"start_tasks,omitempty" yaml:"-"`

	// EndTasks — задачи, от которых никто не зависит.
	EndTasks []string `json:"end_tasks,omitempty" yaml:"-"`

	// TimeoutSec — ограничение времени выполнения всего workflow в секундах.
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`

	// Metadata — произвольные метаданные.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Timeout возвращает таймаут workflow (0 — не задан).
func (w *WorkflowDefinition) Timeout() time.Duration {
	return time.Duration(w.TimeoutSec) * time.Second
}

// Task возвращает определение задачи по ID.
func (w *WorkflowDefinition) Task(id string) (*TaskDefinition, bool) {
	for i := range w.Tasks {
		if w.Tasks[i].ID == id {
			return &w.Tasks[i], true
		}
	}
	return nil, false
}

// TaskIDs возвращает множество ID задач workflow.
func (w *WorkflowDefinition) TaskIDs() map[string]bool {
	ids := make(map[string]bool, len(w.Tasks))
	for i := range w.Tasks {
		ids[w.Tasks[i].ID] = true
	}
	return ids
}
