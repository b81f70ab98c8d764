// controller/access_controller.go
package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prosapient/datacop"
	datacop_errors "github.com/prosapient/datacop/errors"
	"github.com/prosapient/datacop/pdp"
	"github.com/prosapient/datacop/resolution"
	"github.com/prosapient/datacop/util"
)

type AccessController struct {
	policy  *pdp.DocumentPolicy
	store   pdp.DocumentStore
	auditor datacop.Auditor
}

func NewAccessController(policy *pdp.DocumentPolicy, store pdp.DocumentStore, auditor datacop.Auditor) *AccessController {
	return &AccessController{
		policy:  policy,
		store:   store,
		auditor: auditor,
	}
}

// RegisterRoutes registers the API routes
func (ac *AccessController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/access/check", ac.CheckAccess)
	r.GET("/documents", ac.ListDocuments)
}

type checkRequest struct {
	Action     string `json:"action" binding:"required"`
	DocumentID string `json:"document_id" binding:"required"`
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CheckAccess runs one synchronous permit for the requesting actor.
func (ac *AccessController) CheckAccess(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid check request", err)
		return
	}

	actor, ok := requestingActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	doc, err := ac.store.GetDocument(c.Request.Context(), req.DocumentID)
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Document not found", err)
		return
	}

	opts := []datacop.Option{datacop.WithSubject(doc)}
	if ac.auditor != nil {
		opts = append(opts, datacop.WithAudit(ac.auditor))
	}

	err = datacop.Permit(c.Request.Context(), ac.policy, datacop.Action(req.Action), actor, opts...)
	if err == nil {
		c.JSON(http.StatusOK, checkResponse{Allowed: true})
		return
	}

	var denied *datacop_errors.UnauthorizedError
	if errors.As(err, &denied) {
		c.JSON(http.StatusOK, checkResponse{Allowed: false, Reason: denied.Message})
		return
	}
	util.RespondWithError(c, http.StatusInternalServerError, "Authorization check failed", err)
}

type documentItem struct {
	pdp.Document
	Visible bool `json:"visible"`
}

// ListDocuments resolves view access for the whole list in one resolution
// pass: every document that defers joins the same membership batch, so N
// documents cost one batched lookup, not N queries.
func (ac *AccessController) ListDocuments(c *gin.Context) {
	actor, ok := requestingActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	docs, err := ac.store.ListDocuments(c.Request.Context())
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}

	loader, err := datacop.DefaultLoader(ac.policy, pdp.SourceName)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Authorization check failed", err)
		return
	}

	fields := make([]*resolution.Resolution, len(docs))
	for i, doc := range docs {
		doc := doc
		fields[i] = resolution.New(doc,
			resolution.Authorize(pdp.ActionDocumentView, ac.policy,
				resolution.Actor(actor),
				resolution.Loader(loader),
			),
			func(ctx context.Context, res *resolution.Resolution) {
				// The authorization step let the field through; its value is
				// the document itself.
				res.Resolve(res.Source)
			},
		)
	}

	driver := resolution.NewDriver()
	if err := driver.Run(c.Request.Context(), fields); err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Authorization check failed", err)
		return
	}

	items := make([]documentItem, 0, len(docs))
	for i, res := range fields {
		if res.Err != nil {
			var denied *datacop_errors.UnauthorizedError
			if !errors.As(res.Err, &denied) {
				util.RespondWithError(c, http.StatusInternalServerError, "Authorization check failed", res.Err)
				return
			}
			items = append(items, documentItem{Document: docs[i], Visible: false})
			continue
		}
		items = append(items, documentItem{Document: docs[i], Visible: true})
	}

	c.JSON(http.StatusOK, gin.H{"documents": items})
}

func requestingActor(c *gin.Context) (pdp.User, bool) {
	userID, orgID, ok := util.ActorFromContext(c)
	if !ok {
		return pdp.User{}, false
	}
	admin, _ := c.Get("requestingAdmin")
	isAdmin, _ := admin.(bool)
	return pdp.User{ID: userID, OrgID: orgID, Admin: isAdmin}, true
}
