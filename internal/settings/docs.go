package settings

import (
	"encoding/json"
	"net/http"
	"sort"
)

// RegisterDocsEndpoint exposes the non-secret fields of schema as JSON,
// sorted by key, so the admin UI and tooling can render documentation
// without a second source of truth.
func RegisterDocsEndpoint(mux *http.ServeMux, schema Schema) {
	mux.HandleFunc("/api/settings/schema", func(w http.ResponseWriter, r *http.Request) {
		docs := make([]FieldSchema, 0, len(schema))
		for _, f := range schema {
			if f.Secret {
				continue
			}
			docs = append(docs, f)
		}
		sort.SliceStable(docs, func(i, j int) bool {
			return docs[i].Key < docs[j].Key
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(docs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
