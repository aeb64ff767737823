package depgraph

import (
	"container/list"
	"errors"
	"fmt"
	"strings"
)

// ErrCycleDetected means the dependency graph contains a cycle, making
// topological sorting impossible — raised as a SchemaError when a space
// declares Computed measures whose arguments reference each other in a
// loop.
var ErrCycleDetected = errors.New("cycle detected in measure dependency graph")

// CycleError reports which nodes could not be ordered.
type CycleError struct {
	Unprocessed []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycleDetected, strings.Join(e.Unprocessed, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// processingQueue is a FIFO of nodes whose dependencies are all resolved.
type processingQueue struct {
	q *list.List
}

func newProcessingQueue() *processingQueue {
	return &processingQueue{q: list.New()}
}

func (p *processingQueue) enqueue(node string) { p.q.PushBack(node) }

func (p *processingQueue) dequeue() (string, bool) {
	if p.q.Len() == 0 {
		return "", false
	}
	e := p.q.Front()
	p.q.Remove(e)
	return e.Value.(string), true
}

func (p *processingQueue) isEmpty() bool { return p.q.Len() == 0 }

// calculateInDegrees counts, for each node, how many of its dependencies
// have not yet been resolved.
func (g *Graph) calculateInDegrees() map[string]int {
	inDegree := make(map[string]int, len(g.Nodes))
	for name := range g.Nodes {
		inDegree[name] = 0
	}
	for _, children := range g.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}
	return inDegree
}

// TopologicalSort returns nodes ordered so that every node appears after
// all the nodes it depends on (dependencies first), via Kahn's algorithm.
// Returns a *CycleError if the graph is not a DAG.
func (g *Graph) TopologicalSort() ([]string, error) {
	inDegree := g.calculateInDegrees()

	queue := newProcessingQueue()
	for name, degree := range inDegree {
		if degree == 0 {
			queue.enqueue(name)
		}
	}

	var order []string
	for !queue.isEmpty() {
		node, _ := queue.dequeue()
		order = append(order, node)

		for _, child := range g.Children[node] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.enqueue(child)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		processed := make(map[string]bool, len(order))
		for _, n := range order {
			processed[n] = true
		}
		var unprocessed []string
		for name := range g.Nodes {
			if !processed[name] {
				unprocessed = append(unprocessed, name)
			}
		}
		return nil, &CycleError{Unprocessed: unprocessed}
	}

	return order, nil
}
