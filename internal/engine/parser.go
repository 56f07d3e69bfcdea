package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Relay/internal/domain"
)

// Validate выполняет полную валидацию WorkflowDefinition.
//
// Проверяет:
// - Наличие ID и задач
// - Уникальность ID задач
// - Наличие target и operation
// - Отсутствие self-dependency и отрицательных таймаутов
// - Валидность зависимостей и отсутствие циклов (делегируется DAG)
func Validate(def *domain.WorkflowDefinition) error {
	if def == nil || len(def.Tasks) == 0 {
		return ErrEmptyTasks
	}

	if def.ID == "" {
		return NewValidationError("", "id", "workflow has empty ID", ErrEmptyWorkflowID)
	}

	if def.TimeoutSec < 0 {
		return NewValidationError("", "timeout_sec", "workflow timeout is negative", ErrNegativeValue)
	}

	taskIDs := make(map[string]bool, len(def.Tasks))
	for i := range def.Tasks {
		if err := ValidateTask(&def.Tasks[i], taskIDs); err != nil {
			return err
		}
	}

	if _, err := BuildDAG(def); err != nil {
		return err
	}

	return nil
}

// ValidateTask валидирует одну задачу.
// taskIDs — уже встреченные ID задач (для проверки уникальности).
func ValidateTask(task *domain.TaskDefinition, taskIDs map[string]bool) error {
	if task.ID == "" {
		return NewValidationError("", "id", "task has empty ID", ErrEmptyTaskID)
	}

	if taskIDs[task.ID] {
		return NewValidationError(task.ID, "id",
			fmt.Sprintf("duplicate task ID: %s", task.ID), ErrDuplicateTaskID)
	}
	taskIDs[task.ID] = true

	if strings.TrimSpace(task.Target) == "" {
		return NewValidationError(task.ID, "target", "task has empty target", ErrEmptyTarget)
	}

	if strings.TrimSpace(task.Operation) == "" {
		return NewValidationError(task.ID, "operation", "task has empty operation", ErrEmptyOperation)
	}

	for _, dep := range task.DependsOn {
		if dep == task.ID {
			return NewValidationError(task.ID, "depends_on",
				"task depends on itself", ErrSelfDependency)
		}
	}

	retries, _ := task.Retries()
	if task.TimeoutSec < 0 || retries < 0 || task.RetryDelayMs < 0 {
		return NewValidationError(task.ID, "timeout_sec",
			"timeout and retry values must not be negative", ErrNegativeValue)
	}

	return nil
}

// TopologicalOrder возвращает ID задач в порядке выполнения.
func TopologicalOrder(def *domain.WorkflowDefinition) ([]string, error) {
	dag, err := BuildDAG(def)
	if err != nil {
		return nil, err
	}
	return dag.OrderIDs(), nil
}

// Prepare валидирует определение и заполняет StartTasks/EndTasks.
func Prepare(def *domain.WorkflowDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}
	def.StartTasks, def.EndTasks = ComputeBoundaries(def)
	return nil
}

// ParseDefinition декодирует определение workflow из YAML или JSON.
// Результат проходит Prepare.
func ParseDefinition(data []byte) (*domain.WorkflowDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDefinition
	}

	var def domain.WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeDefinition, err)
	}

	if err := Prepare(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinitionReader читает определение workflow из io.Reader.
func LoadDefinitionReader(r io.Reader) (*domain.WorkflowDefinition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return ParseDefinition(content)
}

// LoadDefinitionFile загружает определение workflow из файла.
func LoadDefinitionFile(path string) (*domain.WorkflowDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	def, err := ParseDefinition(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadDefinitionsDir загружает все *.yaml, *.yml и *.json файлы каталога
// в алфавитном порядке имён.
func LoadDefinitionsDir(dir string) ([]*domain.WorkflowDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	defs := make([]*domain.WorkflowDefinition, 0, len(names))
	for _, name := range names {
		def, err := LoadDefinitionFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
