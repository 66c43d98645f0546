package model

import "time"

// VoteValue is a normalized roll-call vote.
type VoteValue string

const (
	VoteYes     VoteValue = "YES"
	VoteNo      VoteValue = "NO"
	VoteAbstain VoteValue = "ABSTAIN"
)

// VoteRecord is one historical roll-call vote by a legislator.
type VoteRecord struct {
	VoteID        string    `json:"vote_id"`
	Date          time.Time `json:"date"`
	BillReference string    `json:"bill_reference"`
	Vote          VoteValue `json:"vote"`
	RawVote       string    `json:"raw_vote,omitempty"` // value as published upstream
	Summary       string    `json:"summary"`
	Theme         Category  `json:"theme"`
}

// IncoherenceResult is derived from one (promise, vote) pair and never persisted.
type IncoherenceResult struct {
	Incoherent    bool   `json:"incoherent"`
	Justification string `json:"justification,omitempty"`
	VoteID        string `json:"vote_id,omitempty"`
}

// PoliticalConsistency summarizes how a politician's votes relate to a promise.
// When Known is false the voting history could not be obtained and
// VotedAgainstTheme is false because inconsistency cannot be shown.
type PoliticalConsistency struct {
	Known             bool               `json:"known"`
	VotedAgainstTheme bool               `json:"voted_against_theme"`
	RelevantVotes     []VoteRecord       `json:"relevant_votes"`
	Contradiction     *IncoherenceResult `json:"contradiction,omitempty"`
	Caveat            string             `json:"caveat,omitempty"`
}
