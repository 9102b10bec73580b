// Package discovery is the Aries discover features protocol.
package discovery

import (
	"strings"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

type Query struct {
	Type    string            `json:"@type"`
	ID      string            `json:"@id"`
	Query   string            `json:"query"`
	Comment string            `json:"comment,omitempty"`
	Thread  *decorator.Thread `json:"~thread,omitempty"`
}

type Disclose struct {
	Type      string            `json:"@type"`
	ID        string            `json:"@id"`
	Protocols []ProtocolDescr   `json:"protocols"`
	Thread    *decorator.Thread `json:"~thread,omitempty"`
}

type ProtocolDescr struct {
	PID   string   `json:"pid"`
	Roles []string `json:"roles,omitempty"`
}

// Supported lists the protocol IDs this agent discloses.
var Supported = []string{
	pltype.AriesConnectionV1,
	pltype.ProblemReport + "/1.0",
	pltype.TrustPing + "/1.0",
	pltype.DiscoverFeatures + "/1.0",
	pltype.OutOfBand + "/1.1",
	pltype.QuestionAnswer + "/1.0",
	pltype.InviteAction + "/0.9",
	pltype.BasicMessage + "/1.0",
	pltype.IssueCredential + "/1.0",
	pltype.PresentProof + "/1.0",
}

// NewQuery builds a query, an empty query asks for everything.
func NewQuery(query, comment string) *Query {
	if query == "" {
		query = "*"
	}
	id := utils.UUID()
	return &Query{
		Type:    pltype.DiscoverFeaturesQuery,
		ID:      id,
		Query:   query,
		Comment: comment,
		Thread:  decorator.NewThread(id, ""),
	}
}

// NewDisclose answers the query with the matching supported protocols.
// Query supports a trailing * wildcard only.
func NewDisclose(q *Query) *Disclose {
	d := &Disclose{
		Type:      pltype.DiscoverFeaturesDisclose,
		ID:        utils.UUID(),
		Protocols: make([]ProtocolDescr, 0, len(Supported)),
		Thread:    decorator.CheckThread(q.Thread, q.ID),
	}
	for _, pid := range Supported {
		if Match(q.Query, pid) {
			d.Protocols = append(d.Protocols, ProtocolDescr{PID: pid})
		}
	}
	return d
}

func Match(query, pid string) bool {
	query = pltype.Normalize(query)
	if prefix, ok := strings.CutSuffix(query, "*"); ok {
		return strings.HasPrefix(pid, prefix)
	}
	return query == pid
}
