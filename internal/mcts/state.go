// Package mcts implements Monte Carlo Tree Search over textual reasoning
// states. The tree and its loop counters live in a single SearchState value
// that is cloned at every phase boundary, so no two pipeline stages ever
// share a mutable view of the search.
package mcts

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Node is a single reasoning position in the search tree. Nodes reference
// each other by id only; the SearchState's node map owns them.
type Node struct {
	// ID uniquely identifies the node within one search session.
	ID string `json:"id"`

	// Parent is the id of the parent node, empty for the root.
	Parent string `json:"parent,omitempty"`

	// Children lists child node ids in creation order.
	Children []string `json:"children"`

	// Visits counts how many simulations have passed through this node.
	Visits uint32 `json:"visits"`

	// Value is the cumulative reward observed through this node, not an
	// average. The mean reward is Value/Visits.
	Value float64 `json:"value"`

	// State is the reasoning text this node represents.
	State string `json:"state"`

	// IsTerminal marks a node the search will not expand further.
	IsTerminal bool `json:"isTerminal"`
}

// MeanValue returns the node's average observed reward, or 0 when the node
// has never been visited.
func (n *Node) MeanValue() float64 {
	if n.Visits == 0 {
		return 0
	}

	return n.Value / float64(n.Visits)
}

// clone returns a deep copy of the node.
func (n *Node) clone() *Node {
	cp := *n
	cp.Children = slices.Clone(n.Children)

	return &cp
}

// SearchState is the complete state of one search session: the node arena
// plus the loop counters. It is the unit of record carried by every pipeline
// event.
type SearchState struct {
	// Nodes maps node id to node.
	Nodes map[string]*Node `json:"nodes"`

	// NodeOrder lists node ids in creation order. The report scan breaks
	// ties by creation order, which a map cannot preserve on its own.
	NodeOrder []string `json:"nodeOrder"`

	// RootID is the id of the root node.
	RootID string `json:"rootId"`

	// CurrentNodeID is the node the search is currently focused on,
	// updated by the selection phase.
	CurrentNodeID string `json:"currentNodeId"`

	// CurrentIteration counts completed iterations.
	CurrentIteration uint32 `json:"currentIteration"`

	// MaxIterations bounds the number of search iterations.
	MaxIterations uint32 `json:"maxIterations"`

	// ExplorationConstant weights the UCB1 exploration bonus.
	ExplorationConstant float64 `json:"explorationConstant"`

	// MaxDepth bounds the selection descent.
	MaxDepth uint32 `json:"maxDepth"`

	// OutputDestination is where the final report should be written, if
	// anywhere.
	OutputDestination string `json:"outputDestination,omitempty"`
}

// NewSearchState creates a fresh search session rooted at the given reasoning
// state. The root starts with a single visit and zero value so its mean
// reward reflects only backpropagated scores.
func NewSearchState(rootState string, maxIterations uint32,
	explorationConstant float64, maxDepth uint32) *SearchState {

	rootID := fmt.Sprintf("root-%d", time.Now().Unix())
	root := &Node{
		ID:       rootID,
		Children: []string{},
		Visits:   1,
		Value:    0,
		State:    rootState,
	}

	return &SearchState{
		Nodes:               map[string]*Node{rootID: root},
		NodeOrder:           []string{rootID},
		RootID:              rootID,
		CurrentNodeID:       rootID,
		MaxIterations:       maxIterations,
		ExplorationConstant: explorationConstant,
		MaxDepth:            maxDepth,
	}
}

// Validate performs the shape checks every phase applies before touching a
// snapshot received off the wire.
func (s *SearchState) Validate() error {
	if len(s.Nodes) == 0 {
		return fmt.Errorf("%w: empty node map", ErrInvalidState)
	}
	if _, ok := s.Nodes[s.RootID]; !ok {
		return fmt.Errorf("%w: root %q missing from node map",
			ErrInvalidState, s.RootID)
	}
	if _, ok := s.Nodes[s.CurrentNodeID]; !ok {
		return fmt.Errorf("%w: current node %q missing from node map",
			ErrInvalidState, s.CurrentNodeID)
	}

	return nil
}

// Clone returns a deep copy of the search state. Phases clone the inbound
// snapshot before mutating it, which gives the pipeline its copy-on-write
// semantics.
func (s *SearchState) Clone() *SearchState {
	cp := *s
	cp.Nodes = make(map[string]*Node, len(s.Nodes))
	for id, node := range s.Nodes {
		cp.Nodes[id] = node.clone()
	}
	cp.NodeOrder = slices.Clone(s.NodeOrder)

	return &cp
}

// Get returns the node with the given id.
func (s *SearchState) Get(id string) (*Node, error) {
	node, ok := s.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	return node, nil
}

// Insert creates a new node under parentID holding the given reasoning state
// and returns its id.
func (s *SearchState) Insert(parentID, state string) (string, error) {
	parent, ok := s.Nodes[parentID]
	if !ok {
		return "", fmt.Errorf("%w: parent %s", ErrNodeNotFound,
			parentID)
	}

	id := uuid.NewString()
	s.Nodes[id] = &Node{
		ID:       id,
		Parent:   parentID,
		Children: []string{},
		State:    state,
	}
	s.NodeOrder = append(s.NodeOrder, id)
	parent.Children = append(parent.Children, id)

	return id, nil
}

// ChildrenOf returns the children of the given node in creation order.
func (s *SearchState) ChildrenOf(id string) ([]*Node, error) {
	node, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	children := make([]*Node, 0, len(node.Children))
	for _, childID := range node.Children {
		child, err := s.Get(childID)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return children, nil
}

// PathToRoot returns the ids on the path from the given node up to the root,
// node first.
func (s *SearchState) PathToRoot(id string) ([]string, error) {
	node, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	path := []string{node.ID}
	for node.Parent != "" {
		node, err = s.Get(node.Parent)
		if err != nil {
			return nil, err
		}
		path = append(path, node.ID)
	}

	return path, nil
}

// TotalVisits sums the visit counts across all nodes.
func (s *SearchState) TotalVisits() uint64 {
	var total uint64
	for _, node := range s.Nodes {
		total += uint64(node.Visits)
	}

	return total
}
