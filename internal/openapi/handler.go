package openapi

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Handler serves the generated document as JSON. The document is built once.
func Handler(baseURL string) http.HandlerFunc {
	var (
		once sync.Once
		body []byte
		err  error
	)
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			body, err = json.Marshal(Generate(baseURL))
		})
		if err != nil {
			http.Error(w, "failed to render API description", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
