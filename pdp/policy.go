// pdp/policy.go

// Package pdp carries the decision-point side of the demo: a concrete
// document policy showing all three verdict shapes, including the batched
// membership check that replaces per-item permission queries in list
// resolution.
package pdp

import (
	"context"
	"fmt"

	"github.com/prosapient/datacop"
	"github.com/prosapient/datacop/dataloader"
)

// Actions the document policy understands.
const (
	ActionDocumentView   datacop.Action = "document:view"
	ActionDocumentEdit   datacop.Action = "document:edit"
	ActionDocumentDelete datacop.Action = "document:delete"
)

// SourceName is the batch source the document policy registers its
// membership lookups under.
const SourceName = "pdp.document"

type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	OwnerID string `json:"owner_id"`
	OrgID   string `json:"org_id"`
}

type User struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Admin bool   `json:"admin"`
}

// MemberKey is the batched lookup input: is this actor an active member of
// this organization. Comparable so it can key loader results.
type MemberKey struct {
	ActorID string
	OrgID   string
}

// PairIDs lets generic pair-shaped batch sources consume the key without
// importing this package.
func (k MemberKey) PairIDs() (string, string) {
	return k.ActorID, k.OrgID
}

func (k MemberKey) String() string {
	return k.ActorID + ":" + k.OrgID
}

// DocumentPolicy authorizes document actions. Owners and admins are decided
// synchronously; everyone else in the document's organization depends on a
// membership lookup, deferred so that checks for a whole document list
// coalesce into one batch per action.
type DocumentPolicy struct {
	Members dataloader.Source
}

func NewDocumentPolicy(members dataloader.Source) *DocumentPolicy {
	return &DocumentPolicy{Members: members}
}

func (p *DocumentPolicy) Authorize(ctx context.Context, action datacop.Action, actor, subject interface{}) datacop.RawResult {
	user, ok := actor.(User)
	if !ok {
		return datacop.Deny("unknown actor")
	}

	switch action {
	case ActionDocumentView, ActionDocumentEdit:
		doc, ok := subject.(Document)
		if !ok {
			return datacop.Deny(fmt.Sprintf("document policy cannot authorize subject %T", subject))
		}
		if user.Admin || doc.OwnerID == user.ID {
			return datacop.Allow()
		}
		if doc.OrgID != user.OrgID {
			return datacop.Deny("actor outside document organization")
		}
		if action == ActionDocumentEdit {
			return datacop.Deny("only the owner may edit")
		}
		// Same org: viewing depends on active membership, resolved in batch.
		return datacop.Defer(datacop.BatchRequest{
			Source:   SourceName,
			BatchKey: action,
			Input:    MemberKey{ActorID: user.ID, OrgID: doc.OrgID},
		})
	case ActionDocumentDelete:
		if user.Admin {
			return datacop.Allow()
		}
		return datacop.Deny("only admins may delete documents")
	default:
		return datacop.Deny(fmt.Sprintf("unknown document action %s", action))
	}
}

// Data exposes the membership source so deferred checks work without an
// explicit loader.
func (p *DocumentPolicy) Data() dataloader.Source {
	return p.Members
}
