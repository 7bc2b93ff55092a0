package openapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/MKhiriev/go-miniservice/internal/logger"
)

// GroupParam is the chi URL parameter naming the document group.
const GroupParam = "group"

// JSONHandler serves the document of the {group} URL parameter as JSON.
func JSONHandler(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := c.Document(chi.URLParam(r, GroupParam))
		if !ok {
			http.NotFound(w, r)
			return
		}

		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			logger.FromRequest(r).Err(err).Msg("error encoding openapi document")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

// YAMLHandler serves the document of the {group} URL parameter as YAML. Field
// names are the same as in the JSON form.
func YAMLHandler(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := c.Document(chi.URLParam(r, GroupParam))
		if !ok {
			http.NotFound(w, r)
			return
		}

		body, err := MarshalYAML(doc)
		if err != nil {
			logger.FromRequest(r).Err(err).Msg("error encoding openapi document")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(body)
	}
}

// MarshalYAML renders doc as YAML through its JSON form.
func MarshalYAML(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var generic any
	if err = json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}
