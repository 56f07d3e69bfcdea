package engine

import (
	"fmt"

	"github.com/shaiso/Relay/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Task — определение задачи.
	Task *domain.TaskDefinition

	// ID — идентификатор узла (совпадает с Task.ID).
	ID string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф задач workflow.
type DAG struct {
	// Nodes — все узлы графа (taskID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей, в порядке объявления.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node

	// declared — порядок объявления задач.
	declared []*Node
}

// BuildDAG строит DAG из WorkflowDefinition.
//
// В отличие от ComputeBoundaries, зависимость на несуществующую задачу
// здесь является ошибкой. Цикл в графе возвращает ErrCyclicDependency.
func BuildDAG(def *domain.WorkflowDefinition) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(def.Tasks)),
		RootNodes: make([]*Node, 0),
		declared:  make([]*Node, 0, len(def.Tasks)),
	}

	// Первый проход: создаём все узлы
	for i := range def.Tasks {
		task := &def.Tasks[i]
		node := &Node{
			Task:       task,
			ID:         task.ID,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
		dag.Nodes[task.ID] = node
		dag.declared = append(dag.declared, node)
	}

	// Второй проход: связываем узлы по зависимостям
	for _, node := range dag.declared {
		for _, depID := range node.Task.DependsOn {
			depNode, exists := dag.Nodes[depID]
			if !exists {
				return nil, NewValidationError(node.ID, "depends_on",
					fmt.Sprintf("depends on unknown task: %s", depID), ErrMissingDependency)
			}
			dag.addEdge(depNode, node)
		}
	}

	for _, node := range dag.declared {
		if node.InDegree == 0 {
			dag.RootNodes = append(dag.RootNodes, node)
		}
	}

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты в depends_on не увеличивают InDegree повторно.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		stuck := make([]string, 0)
		for _, node := range d.declared {
			if inDegree[node.ID] > 0 {
				stuck = append(stuck, node.ID)
			}
		}
		return nil, NewValidationError("", "depends_on",
			fmt.Sprintf("cyclic dependency between tasks %v", stuck), ErrCyclicDependency)
	}

	return order, nil
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// OrderIDs возвращает ID задач в топологическом порядке.
func (d *DAG) OrderIDs() []string {
	ids := make([]string, len(d.Order))
	for i, node := range d.Order {
		ids[i] = node.ID
	}
	return ids
}

// ComputeBoundaries вычисляет start и end задачи workflow.
//
// Start — задачи без зависимостей либо все зависимости которых ссылаются
// на задачи вне workflow (считаются выполненными за отсутствием).
// End — задачи, которые не упомянуты в depends_on ни одной задачи.
// Оба списка в порядке объявления задач.
func ComputeBoundaries(def *domain.WorkflowDefinition) (start, end []string) {
	all := def.TaskIDs()

	start = make([]string, 0)
	dependedOn := make(map[string]bool)

	for i := range def.Tasks {
		task := &def.Tasks[i]

		disjoint := true
		for _, dep := range task.DependsOn {
			dependedOn[dep] = true
			if all[dep] {
				disjoint = false
			}
		}
		if disjoint {
			start = append(start, task.ID)
		}
	}

	end = make([]string, 0)
	for i := range def.Tasks {
		if !dependedOn[def.Tasks[i].ID] {
			end = append(end, def.Tasks[i].ID)
		}
	}

	return start, end
}

// ReadyTasks возвращает задачи, готовые к запуску.
//
// Задача готова, если:
//   - для неё ещё нет TaskExecution
//   - каждая её зависимость имеет TaskExecution в статусе COMPLETED
//
// Зависимости в статусе FAILED, SKIPPED или RUNNING задачу не освобождают.
// Результат в порядке объявления задач.
func ReadyTasks(def *domain.WorkflowDefinition, tasks map[string]*domain.TaskExecution) []*domain.TaskDefinition {
	ready := make([]*domain.TaskDefinition, 0)

	for i := range def.Tasks {
		task := &def.Tasks[i]

		if _, started := tasks[task.ID]; started {
			continue
		}

		if dependenciesMet(task, tasks) {
			ready = append(ready, task)
		}
	}

	return ready
}

// dependenciesMet проверяет, что все зависимости задачи завершены успешно.
func dependenciesMet(task *domain.TaskDefinition, tasks map[string]*domain.TaskExecution) bool {
	for _, depID := range task.DependsOn {
		dep, exists := tasks[depID]
		if !exists || dep.Status != domain.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// IsComplete проверяет, что каждая задача workflow завершена
// со статусом COMPLETED или SKIPPED.
func IsComplete(def *domain.WorkflowDefinition, tasks map[string]*domain.TaskExecution) bool {
	for i := range def.Tasks {
		exec, exists := tasks[def.Tasks[i].ID]
		if !exists || !exec.Status.IsDone() {
			return false
		}
	}
	return true
}
