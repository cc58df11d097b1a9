package transport

import (
	"net/http"

	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/model"
)

// TransactionSummary describes a transaction a user may start.
type TransactionSummary struct {
	Type        string `json:"type"`
	Domain      string `json:"domain"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TotalSteps  int    `json:"total_steps"`
}

// handleTransactions lists the loaded transactions the caller has the
// capabilities to start.
func handleTransactions(defs *definition.Registry, resolver model.CapabilityResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var caps model.CapabilitySet
		if resolver != nil {
			resolved, err := resolver.Resolve(rctx)
			if err != nil {
				writeRequestError(w, r, err)
				return
			}
			caps = resolved
		}

		out := make([]TransactionSummary, 0)
		for _, tx := range defs.AllTransactions() {
			if resolver != nil && !caps.HasAll(tx.Capabilities...) {
				continue
			}
			out = append(out, TransactionSummary{
				Type:        tx.Type,
				Domain:      tx.Domain,
				Title:       tx.Title,
				Description: tx.Description,
				TotalSteps:  tx.TotalSteps(),
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": out})
	}
}
