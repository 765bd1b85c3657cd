// Package model contains domain models passed between layers.
package model

// MainCategory is the privileged leaderboard that represents the global top 50.
const MainCategory = "main"

// MaxPosition is the deepest position any category leaderboard exposes.
const MaxPosition = 50

// Item is a ranked work as known to the external catalog.
type Item struct {
	ID         string   `json:"id" yaml:"id"`
	Title      string   `json:"title,omitempty" yaml:"title"`
	Author     string   `json:"author,omitempty" yaml:"author"`
	ExternalID string   `json:"external_id,omitempty" yaml:"external_id"`
	Cover      string   `json:"cover,omitempty" yaml:"cover"`
	Tags       []string `json:"tags,omitempty" yaml:"tags"`
}
