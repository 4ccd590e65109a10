// Package cluster keeps per-cluster counts of the records currently held in a
// stream, split into normal and anomalous records, and the cluster a viewer
// has selected.
package cluster

import "sort"

const (
	RootName      = "root"
	NormalName    = "normal"
	AnomalousName = "anomalous"
)

// Node is one level of the count hierarchy. Value is the sum of its leaves.
type Node struct {
	Name     string `json:"name"`
	Cluster  string `json:"cluster,omitempty"`
	Value    int    `json:"value"`
	Children []Node `json:"children,omitempty"`
}

// Aggregate is not safe for concurrent use.
type Aggregate struct {
	normal    int
	anomalous map[string]int
}

func NewAggregate() *Aggregate {
	return &Aggregate{anomalous: make(map[string]int)}
}

func (a *Aggregate) Add(anomalous bool, cluster string) {
	if !anomalous {
		a.normal++
		return
	}
	a.anomalous[cluster]++
}

// Remove never lets a count drop below zero.
func (a *Aggregate) Remove(anomalous bool, cluster string) {
	if !anomalous {
		if a.normal > 0 {
			a.normal--
		}
		return
	}
	n, ok := a.anomalous[cluster]
	if !ok {
		return
	}
	if n <= 1 {
		delete(a.anomalous, cluster)
		return
	}
	a.anomalous[cluster] = n - 1
}

func (a *Aggregate) Normal() int { return a.normal }

func (a *Aggregate) Anomalous(cluster string) int { return a.anomalous[cluster] }

func (a *Aggregate) Total() int {
	total := a.normal
	for _, n := range a.anomalous {
		total += n
	}
	return total
}

func (a *Aggregate) Hierarchy() Node {
	names := make([]string, 0, len(a.anomalous))
	for name := range a.anomalous {
		names = append(names, name)
	}
	sort.Strings(names)

	anomalous := Node{Name: AnomalousName}
	for _, name := range names {
		n := a.anomalous[name]
		anomalous.Children = append(anomalous.Children, Node{Name: name, Cluster: name, Value: n})
		anomalous.Value += n
	}
	normal := Node{Name: NormalName, Value: a.normal}
	return Node{
		Name:     RootName,
		Value:    normal.Value + anomalous.Value,
		Children: []Node{normal, anomalous},
	}
}

// Selection is the cluster a viewer has picked out.
type Selection struct {
	current string
}

// Select toggles name. Picking the anomalous group itself, or nothing,
// clears the selection.
func (s *Selection) Select(name string) string {
	switch {
	case name == "" || name == AnomalousName:
		s.current = ""
	case name == s.current:
		s.current = ""
	default:
		s.current = name
	}
	return s.current
}

func (s *Selection) Unselect() { s.current = "" }

func (s *Selection) Current() string { return s.current }
