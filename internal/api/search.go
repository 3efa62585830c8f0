package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/pkg/types"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid search parameters", err.Error())
		return
	}

	resp, err := s.searcher.Search(r.Context(), query)
	if errors.Is(err, types.ErrQueryValidation) {
		sendError(w, http.StatusBadRequest, "Invalid search parameters", err.Error())
		return
	}
	if err != nil {
		logging.WithContext(r.Context()).Error("search failed", logging.Err(err))
		sendError(w, http.StatusInternalServerError, "Search failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseSearchQuery reads search parameters. File types may be repeated,
// given as fileType[] or comma separated. Dates accept RFC 3339 or
// YYYY-MM-DD. Sizes are in megabytes.
func parseSearchQuery(values url.Values) (types.SearchQuery, error) {
	q := types.SearchQuery{Q: values.Get("q")}

	var err error
	if q.Page, err = intParam(values, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(values, "limit"); err != nil {
		return q, err
	}

	for _, key := range []string{"fileType", "fileType[]", "fileTypes"} {
		for _, v := range values[key] {
			for _, ft := range strings.Split(v, ",") {
				if ft = strings.TrimSpace(ft); ft != "" {
					q.FileTypes = append(q.FileTypes, ft)
				}
			}
		}
	}

	if q.DateRange.Start, err = dateParam(values, "dateRange[start]", "startDate"); err != nil {
		return q, err
	}
	if q.DateRange.End, err = dateParam(values, "dateRange[end]", "endDate"); err != nil {
		return q, err
	}
	if q.DateRange.End != nil && isDateOnly(firstValue(values, "dateRange[end]", "endDate")) {
		// A bare end date includes the whole day
		end := q.DateRange.End.Add(24*time.Hour - time.Millisecond)
		q.DateRange.End = &end
	}

	if q.MinSize, err = sizeParam(values, "minSize"); err != nil {
		return q, err
	}
	if q.MaxSize, err = sizeParam(values, "maxSize"); err != nil {
		return q, err
	}

	return q, nil
}

func intParam(values url.Values, key string) (int, error) {
	v := strings.TrimSpace(values.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: must be an integer", key)
	}
	return n, nil
}

func firstValue(values url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

const dateOnly = "2006-01-02"

func isDateOnly(v string) bool {
	_, err := time.Parse(dateOnly, v)
	return err == nil
}

func dateParam(values url.Values, keys ...string) (*time.Time, error) {
	v := firstValue(values, keys...)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, dateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s: invalid date %q", keys[0], v)
}

func sizeParam(values url.Values, key string) (*int64, error) {
	v := strings.TrimSpace(values.Get(key))
	if v == "" {
		return nil, nil
	}
	mb, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: must be a number of megabytes", key)
	}
	if mb < 0 {
		return nil, fmt.Errorf("%s: must not be negative", key)
	}
	bytes := types.MegabytesToBytes(mb)
	return &bytes, nil
}
