// Package report assembles and publishes the final product of a review
// session: the best-supported reasoning path plus the statistics that back
// it.
package report

import (
	"github.com/obiyadev/revtree/internal/mcts"
)

// Stats summarizes how much search effort supports the selected node.
type Stats struct {
	// Visits is the selected node's visit count.
	Visits uint32 `json:"visits"`

	// Value is the selected node's cumulative reward.
	Value float64 `json:"value"`

	// TotalVisits sums visits across the whole tree.
	TotalVisits uint64 `json:"totalVisits"`

	// ChildrenCount is the number of children under the selected node.
	ChildrenCount int `json:"childrenCount"`
}

// Report is the final answer of one review session.
type Report struct {
	// SessionID identifies the review session.
	SessionID string `json:"sessionId"`

	// SelectedNodeID is the node chosen as the best-supported conclusion.
	SelectedNodeID string `json:"selectedNodeId"`

	// State is the selected node's reasoning text.
	State string `json:"state"`

	// Reasoning explains how the conclusion was reached.
	Reasoning string `json:"reasoning"`

	// Stats backs the selection with search statistics.
	Stats Stats `json:"stats"`

	// AllNodes is the full tree at finalization, for audit.
	AllNodes map[string]*mcts.Node `json:"allNodes"`

	// Repository and Branch locate what was reviewed.
	Repository string `json:"repository"`
	Branch     string `json:"branch,omitempty"`

	// Requirements are the review requirements the session ran against.
	Requirements string `json:"requirements"`

	// OutputDestination is where the report was asked to be written.
	OutputDestination string `json:"outputDestination,omitempty"`
}

// Build selects the best node of a finished search and assembles the report
// around it.
func Build(sessionID string, search *mcts.SearchState,
	reasoning string) *Report {

	selected := mcts.BestReportNode(search)

	return &Report{
		SessionID:      sessionID,
		SelectedNodeID: selected.ID,
		State:          selected.State,
		Reasoning:      reasoning,
		Stats: Stats{
			Visits:        selected.Visits,
			Value:         selected.Value,
			TotalVisits:   search.TotalVisits(),
			ChildrenCount: len(selected.Children),
		},
		AllNodes:          search.Nodes,
		OutputDestination: search.OutputDestination,
	}
}
