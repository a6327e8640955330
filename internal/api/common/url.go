package common

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// GetIDParam extracts a positive numeric id from the chi URL parameter paramName.
// A trailing ".html" is accepted so that /incidents/12.html and /incidents/12 match.
func GetIDParam(r *http.Request, paramName string) (int64, error) {
	raw := strings.TrimSuffix(chi.URLParam(r, paramName), ".html")
	if raw == "" {
		return 0, fmt.Errorf("%s cannot be empty", paramName)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", paramName)
	}
	return id, nil
}
