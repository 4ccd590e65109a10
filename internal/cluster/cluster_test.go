package cluster

import (
	"reflect"
	"testing"
)

func TestAggregateCounts(t *testing.T) {
	a := NewAggregate()
	a.Add(false, "")
	a.Add(false, "ignored")
	a.Add(true, "b")
	a.Add(true, "a")
	a.Add(true, "b")

	if a.Normal() != 2 {
		t.Fatalf("normal = %d, want 2", a.Normal())
	}
	if a.Anomalous("b") != 2 || a.Anomalous("a") != 1 {
		t.Fatalf("anomalous counts a=%d b=%d", a.Anomalous("a"), a.Anomalous("b"))
	}
	if a.Total() != 5 {
		t.Fatalf("total = %d, want 5", a.Total())
	}

	want := Node{
		Name:  RootName,
		Value: 5,
		Children: []Node{
			{Name: NormalName, Value: 2},
			{Name: AnomalousName, Value: 3, Children: []Node{
				{Name: "a", Cluster: "a", Value: 1},
				{Name: "b", Cluster: "b", Value: 2},
			}},
		},
	}
	if got := a.Hierarchy(); !reflect.DeepEqual(got, want) {
		t.Fatalf("hierarchy = %+v, want %+v", got, want)
	}
}

func TestAggregateRemoveFloorsAtZero(t *testing.T) {
	a := NewAggregate()
	a.Remove(false, "")
	a.Remove(true, "missing")
	if a.Total() != 0 {
		t.Fatalf("total = %d, want 0", a.Total())
	}

	a.Add(true, "x")
	a.Add(true, "x")
	a.Remove(true, "x")
	if a.Anomalous("x") != 1 {
		t.Fatalf("x = %d, want 1", a.Anomalous("x"))
	}
	a.Remove(true, "x")
	h := a.Hierarchy()
	if len(h.Children[1].Children) != 0 {
		t.Fatalf("empty cluster should be dropped, got %+v", h.Children[1].Children)
	}
}

func TestSelectionToggles(t *testing.T) {
	var s Selection
	tests := []struct {
		name string
		pick string
		want string
	}{
		{"select", "c1", "c1"},
		{"switch", "c2", "c2"},
		{"toggle off", "c2", ""},
		{"select again", "c1", "c1"},
		{"anomalous group clears", AnomalousName, ""},
		{"select once more", "c3", "c3"},
		{"empty clears", "", ""},
	}
	for _, tt := range tests {
		if got := s.Select(tt.pick); got != tt.want {
			t.Fatalf("%s: Select(%q) = %q, want %q", tt.name, tt.pick, got, tt.want)
		}
	}
	s.Select("c4")
	s.Unselect()
	if s.Current() != "" {
		t.Fatalf("current = %q after Unselect", s.Current())
	}
}
