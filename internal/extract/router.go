package extract

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// Router picks a provider by document format.
type Router struct {
	byFormat map[string]Provider
}

// NewRouter sends PDFs and images to document and .json files to structured.
// Either may be nil, in which case that format is refused.
func NewRouter(document, structured Provider) *Router {
	r := &Router{byFormat: map[string]Provider{}}
	if document != nil {
		r.byFormat[constants.PDF] = document
		r.byFormat[constants.IMAGE] = document
	}
	if structured != nil {
		r.byFormat[constants.JSON] = structured
	}
	return r
}

func (r *Router) Extract(ctx context.Context, path string) (Extraction, error) {
	ext := filepath.Ext(path)
	p, ok := r.byFormat[constants.MapExtToFormat(ext)]
	if !ok {
		return Extraction{DocumentQuality: constants.QualityUnreadable, Notes: "Unsupported document type"},
			common.ExtractionFailure("Unsupported document type", fmt.Errorf("extension %q", ext))
	}
	return p.Extract(ctx, path)
}
