package agent

import (
	"sort"
	"testing"
)

func TestRuntimeRegistryRegisterAndIsActive(t *testing.T) {
	reg := NewRuntimeRegistry()

	if reg.IsSessionActive("s1") {
		t.Fatal("expected unregistered session to be inactive")
	}

	reg.Register("s1", func() {}, "")
	if !reg.IsSessionActive("s1") {
		t.Fatal("expected registered session to be active")
	}

	reg.Unregister("s1")
	if reg.IsSessionActive("s1") {
		t.Fatal("expected unregistered session to be inactive again")
	}
}

func TestRuntimeRegistryAbortHierarchyCancelsRootAndDescendants(t *testing.T) {
	reg := NewRuntimeRegistry()

	var cancelled []string
	mark := func(id string) func() {
		return func() { cancelled = append(cancelled, id) }
	}

	reg.Register("root", mark("root"), "")
	reg.Register("child-a", mark("child-a"), "root")
	reg.Register("child-b", mark("child-b"), "root")
	reg.Register("grandchild", mark("grandchild"), "child-a")
	reg.Register("unrelated", mark("unrelated"), "")

	visited := reg.AbortHierarchy("root")

	if len(visited) != 4 {
		t.Fatalf("expected 4 sessions in the hierarchy, got %d: %v", len(visited), visited)
	}
	if visited[0] != "root" {
		t.Fatalf("expected root to be cancelled first, got %v", visited)
	}

	sortedVisited := append([]string(nil), visited...)
	sort.Strings(sortedVisited)
	want := []string{"child-a", "child-b", "grandchild", "root"}
	for i := range want {
		if sortedVisited[i] != want[i] {
			t.Fatalf("expected visited set %v, got %v", want, sortedVisited)
		}
	}

	sortedCancelled := append([]string(nil), cancelled...)
	sort.Strings(sortedCancelled)
	for i := range want {
		if sortedCancelled[i] != want[i] {
			t.Fatalf("expected cancelled set %v, got %v", want, sortedCancelled)
		}
	}

	for _, id := range cancelled {
		if id == "unrelated" {
			t.Fatal("expected unrelated session to not be cancelled")
		}
	}
}

func TestRuntimeRegistryAbortHierarchyUnknownRootIsNoop(t *testing.T) {
	reg := NewRuntimeRegistry()
	reg.Register("s1", func() {}, "")

	visited := reg.AbortHierarchy("does-not-exist")
	if len(visited) != 0 {
		t.Fatalf("expected no sessions visited, got %v", visited)
	}
}

func TestRuntimeRegistryAbortHierarchyIsBoundedAgainstCycles(t *testing.T) {
	reg := NewRuntimeRegistry()

	// A self-referential parent edge should never occur in practice, but
	// the traversal must not spin forever if it does.
	reg.Register("s1", func() {}, "s1")

	visited := reg.AbortHierarchy("s1")
	if len(visited) != 1 || visited[0] != "s1" {
		t.Fatalf("expected exactly one visit, got %v", visited)
	}
}
