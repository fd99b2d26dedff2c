package web

import (
	"net/url"
	"strconv"

	"github.com/parlor/parlor/weberr"
)

type (
	// pagination is extracted from the limit/offset query params.
	// A nil limit means "everything after offset".
	pagination struct {
		limit  *int
		offset int
	}
)

// extractPagination reads the limit and offset query params. Sending
// no pagination params at all means defaults; sending only one of the
// two is a missing-parameter failure; a value that is not an integer
// is a parse failure.
func extractPagination(params url.Values) (pagination, error) {
	if !params.Has("limit") && !params.Has("offset") {
		return pagination{}, nil
	}
	if !params.Has("limit") || !params.Has("offset") {
		return pagination{}, weberr.MissingParameters()
	}
	limit, err := strconv.Atoi(params.Get("limit"))
	if err != nil {
		return pagination{}, weberr.Parse(err)
	}
	offset, err := strconv.Atoi(params.Get("offset"))
	if err != nil {
		return pagination{}, weberr.Parse(err)
	}
	return pagination{limit: &limit, offset: offset}, nil
}
