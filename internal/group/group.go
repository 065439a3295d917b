// Package group runs an ordered or dependency-partially-ordered sequence
// of operations with aggregate success semantics (spec §4.10).
package group

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yggdrasil-au/remake-engine/internal/command"
	"github.com/yggdrasil-au/remake-engine/internal/dispatch"
	"github.com/yggdrasil-au/remake-engine/internal/errs"
	"github.com/yggdrasil-au/remake-engine/internal/event"
	"github.com/yggdrasil-au/remake-engine/internal/logging"
	"github.com/yggdrasil-au/remake-engine/internal/manifest"
	"github.com/yggdrasil-au/remake-engine/internal/registry"
)

type node struct {
	op   manifest.Operation
	deps []int // indices into the node slice
}

// Run executes operations (one group's worth) to completion, returning
// the logical AND of every attempted operation's result (spec §4.10:
// "skipped counts as failure"). Operations whose depends-on sets are
// disjoint run concurrently; a cycle in depends-on is reported as
// errs.InvalidDependency before anything runs.
func Run(ctx context.Context, moduleName string, modules map[string]registry.Descriptor, groupName string, operations []manifest.Operation, answers command.Answers, deps dispatch.Dependencies, cb dispatch.Callbacks, cancel <-chan struct{}) bool {
	log := logging.Get(logging.CategoryGroup)
	if len(operations) == 0 {
		return true
	}

	nodes, err := buildNodes(operations)
	if err != nil {
		log.Error("group %q: %v", groupName, err)
		emitError(cb, err)
		return false
	}
	if cyc := findCycle(nodes); cyc != "" {
		err := errs.New(errs.InvalidDependency, "group %q: dependency cycle through operation %q", groupName, cyc)
		log.Error("%v", err)
		emitError(cb, err)
		return false
	}

	n := len(nodes)
	attempted := make([]bool, n)
	success := make([]bool, n)

	remaining := n
	for remaining > 0 {
		select {
		case <-cancel:
			log.Info("group %q cancelled with %d operation(s) pending", groupName, remaining)
			return false
		default:
		}

		var ready []int
		for i, nd := range nodes {
			if attempted[i] {
				continue
			}
			depsSatisfied := true
			depsFailed := false
			for _, d := range nd.deps {
				if !attempted[d] {
					depsSatisfied = false
					break
				}
				if !success[d] {
					depsFailed = true
				}
			}
			if !depsSatisfied {
				continue
			}
			if depsFailed {
				attempted[i] = true
				remaining--
				log.Info("group %q: skipping %q, a dependency failed", groupName, nd.op.Name)
				continue
			}
			ready = append(ready, i)
		}

		if len(ready) == 0 {
			// Every remaining node has an unsatisfied dependency that
			// will never complete; findCycle should have caught this.
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, i := range ready {
			i := i
			g.Go(func() error {
				success[i] = runNode(gctx, moduleName, modules, nodes[i].op, answers, deps, cb, cancel)
				return nil
			})
		}
		g.Wait()
		for _, i := range ready {
			attempted[i] = true
			remaining--
		}
	}

	result := true
	for i := range nodes {
		if !success[i] {
			result = false
		}
	}
	return result
}

// runNode executes op and, on success, its onsuccess children in
// declaration order — a child failure flips the node's own result.
func runNode(ctx context.Context, moduleName string, modules map[string]registry.Descriptor, op manifest.Operation, answers command.Answers, deps dispatch.Dependencies, cb dispatch.Callbacks, cancel <-chan struct{}) bool {
	ok := dispatch.Run(ctx, moduleName, modules, op, answers, deps, cb, cancel)
	if !ok {
		return false
	}
	for _, child := range op.OnSuccess {
		if !runNode(ctx, moduleName, modules, child, answers, deps, cb, cancel) {
			ok = false
		}
	}
	return ok
}

// buildNodes resolves every operation's depends-on ids to node indices,
// rejecting a reference to an id absent from the group.
func buildNodes(operations []manifest.Operation) ([]node, error) {
	idToIndex := make(map[int]int, len(operations))
	for i, op := range operations {
		if op.HasID {
			idToIndex[op.ID] = i
		}
	}

	nodes := make([]node, len(operations))
	for i, op := range operations {
		nodes[i].op = op
		for _, depID := range op.DependsOn {
			idx, ok := idToIndex[depID]
			if !ok {
				return nil, errs.New(errs.InvalidDependency, "operation %q depends on unknown id %d", op.Name, depID)
			}
			nodes[i].deps = append(nodes[i].deps, idx)
		}
	}
	return nodes, nil
}

// findCycle returns the display name of an operation on a dependency
// cycle, or "" if the graph is acyclic.
func findCycle(nodes []node) string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(nodes))

	var visit func(i int) string
	visit = func(i int) string {
		color[i] = gray
		for _, d := range nodes[i].deps {
			switch color[d] {
			case gray:
				return nodes[d].op.Name
			case white:
				if name := visit(d); name != "" {
					return name
				}
			}
		}
		color[i] = black
		return ""
	}

	for i := range nodes {
		if color[i] == white {
			if name := visit(i); name != "" {
				return name
			}
		}
	}
	return ""
}

// RunInstall runs grouped's run-all group if one is named, else its
// first declared group, with every prompt answered by its default
// (spec §4.10: "runInstall is runGroup targeted at a manifest's run-all
// group if present, else its first declared group").
func RunInstall(ctx context.Context, moduleName string, modules map[string]registry.Descriptor, grouped manifest.Grouped, groupOrder []string, deps dispatch.Dependencies, cb dispatch.Callbacks, cancel <-chan struct{}) bool {
	name := selectInstallGroup(grouped, groupOrder)
	if name == "" {
		return true
	}
	ops := grouped[name]
	return Run(ctx, moduleName, modules, name, ops, defaultAnswers(ops), deps, cb, cancel)
}

func selectInstallGroup(grouped manifest.Grouped, order []string) string {
	for _, name := range order {
		if strings.EqualFold(name, "run-all") {
			return name
		}
	}
	if len(order) > 0 {
		return order[0]
	}
	for name := range grouped {
		return name
	}
	return ""
}

func defaultAnswers(operations []manifest.Operation) command.Answers {
	answers := command.Answers{}
	var collect func([]manifest.Operation)
	collect = func(ops []manifest.Operation) {
		for _, op := range ops {
			for _, p := range op.Prompts {
				if _, exists := answers[p.Name]; !exists {
					answers[p.Name] = p.Default
				}
			}
			collect(op.OnSuccess)
		}
	}
	collect(operations)
	return answers
}

func emitError(cb dispatch.Callbacks, err error) {
	if cb.OnEvent != nil {
		cb.OnEvent(event.Error(fmt.Sprintf("%v", err)))
	}
}
