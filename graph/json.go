package graph

import "encoding/json"

type nodeJSON struct {
	UID     string       `json:"uid"`
	Xid     string       `json:"xid"`
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Details []detailJSON `json:"details"`
	Trusts  []trustJSON  `json:"trusts"`
}

type detailJSON struct {
	Version            string   `json:"version"`
	IsHazardous        bool     `json:"is_hazardous"`
	IsMisconfigured    bool     `json:"is_misconfigured"`
	IsEmptyNonterminal bool     `json:"is_empty_nonterminal"`
	IsPublicSuffix     bool     `json:"is_public_suffix"`
	Misconfigurations  []string `json:"misconfigurations"`
}

type trustJSON struct {
	UID          string   `json:"uid"`
	Xid          string   `json:"xid"`
	Parent       []string `json:"parent,omitempty"`
	Child        []string `json:"child,omitempty"`
	Provisioning []string `json:"provisioning,omitempty"`
}

func (n *Node) toJSON() nodeJSON {
	return nodeJSON{
		UID:  n.Uid(),
		Xid:  n.Xid(),
		Name: n.Name,
		Type: string(n.Type),
		Details: []detailJSON{{
			Version:            n.Version,
			IsHazardous:        n.IsHazardous,
			IsMisconfigured:    n.IsMisconfigured,
			IsEmptyNonterminal: n.IsEmptyNonTerminal,
			IsPublicSuffix:     n.IsPublicSuffix,
			Misconfigurations:  n.sortedMisconfigurations(),
		}},
		Trusts: []trustJSON{{
			UID:          n.Uid() + "_trust_" + n.Version,
			Xid:          n.Xid() + "_trust_" + n.Version,
			Parent:       n.sortedTrustUids(EdgeParent),
			Child:        n.sortedTrustUids(EdgeChild),
			Provisioning: n.sortedTrustUids(EdgeProvisioning),
		}},
	}
}

// JSON renders the graph as an array of node objects, sorted by xid for
// deterministic output.
func (g *Graph) JSON() ([]byte, error) {
	nodes := g.Nodes()
	out := make([]nodeJSON, len(nodes))
	for i, n := range nodes {
		out[i] = n.toJSON()
	}
	return json.Marshal(out)
}

// MarshalJSON lets a Graph be embedded directly in a larger JSON document.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return g.JSON()
}
