package graph

import (
	"math"

	"researchgraph/internal/models"
)

const satelliteRadius = 300

// Node and Edge follow the React Flow shape the frontend renders directly.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type NodeData struct {
	Title    string   `json:"title"`
	ArxivID  string   `json:"arxiv_id"`
	Year     string   `json:"year"`
	Authors  []string `json:"authors"`
	IsCenter bool     `json:"isCenter"`
}

type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Animated bool   `json:"animated,omitempty"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Build lays out a one-hop citation neighborhood: the center paper at the
// origin and its stored neighbors on a circle around it. Outgoing edges mean
// the center references the satellite; animated incoming edges mean the
// satellite cites the center. A satellite can carry both.
func Build(center models.Paper, satellites []models.Paper) Graph {
	g := Graph{
		Nodes: []Node{paperNode(center, Position{}, true)},
		Edges: []Edge{},
	}

	refs := toSet(center.References)
	citedBy := toSet(center.CitedBy)
	positions := arrangeSatellites(len(satellites))

	for i, sat := range satellites {
		g.Nodes = append(g.Nodes, paperNode(sat, positions[i], false))
		if refs[sat.ArxivID] {
			g.Edges = append(g.Edges, Edge{
				ID:     "e-" + center.ID + "-" + sat.ID,
				Source: center.ID,
				Target: sat.ID,
			})
		}
		if citedBy[sat.ArxivID] {
			g.Edges = append(g.Edges, Edge{
				ID:       "e-" + sat.ID + "-" + center.ID,
				Source:   sat.ID,
				Target:   center.ID,
				Animated: true,
			})
		}
	}
	return g
}

// RelatedArxivIDs returns the deduplicated union of a paper's references and
// citers, preserving first-seen order so the layout is stable.
func RelatedArxivIDs(p models.Paper) []string {
	seen := make(map[string]bool, len(p.References)+len(p.CitedBy))
	out := make([]string, 0, len(p.References)+len(p.CitedBy))
	for _, id := range append(append([]string{}, p.References...), p.CitedBy...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func paperNode(p models.Paper, pos Position, isCenter bool) Node {
	year := "N/A"
	if p.PublishedDate != nil {
		year = p.PublishedDate.Format("2006")
	}
	authors := p.Authors
	if len(authors) > 3 {
		authors = authors[:3]
	}
	if authors == nil {
		authors = []string{}
	}
	return Node{
		ID:       p.ID,
		Type:     "paperNode",
		Position: pos,
		Data: NodeData{
			Title:    p.Title,
			ArxivID:  p.ArxivID,
			Year:     year,
			Authors:  authors,
			IsCenter: isCenter,
		},
	}
}

func arrangeSatellites(count int) []Position {
	positions := make([]Position, count)
	if count == 0 {
		return positions
	}
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi * float64(i) / float64(count)
		positions[i] = Position{
			X: satelliteRadius * math.Cos(angle),
			Y: satelliteRadius * math.Sin(angle),
		}
	}
	return positions
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
