package reporthttp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/shopreports/internal/reports"
)

const dateLayout = "2006-01-02"

// parseRequest reads report parameters from the query string. Absent
// required filters are left zero so Request.Validate reports them.
func parseRequest(r *http.Request, kind reports.Kind) (reports.Request, error) {
	q := r.URL.Query()
	req := reports.Request{
		Kind: kind,
		Filter: reports.Filter{
			SearchBy:         strings.TrimSpace(q.Get("search_by")),
			TransactionTypes: splitList(q.Get("transaction_types")),
		},
		Meta: reports.Meta{
			ShopName:   strings.TrimSpace(q.Get("shop_name")),
			EntityName: strings.TrimSpace(q.Get("entity_name")),
		},
	}
	var err error
	if req.Filter.ShopID, err = parseID(q.Get("shop_id"), "shop_id"); err != nil {
		return reports.Request{}, err
	}
	if req.Filter.EntityID, err = parseID(q.Get("entity_id"), "entity_id"); err != nil {
		return reports.Request{}, err
	}
	if req.Filter.From, err = parseDate(q.Get("start_date"), "start_date"); err != nil {
		return reports.Request{}, err
	}
	if req.Filter.To, err = parseDate(q.Get("end_date"), "end_date"); err != nil {
		return reports.Request{}, err
	}
	for _, raw := range splitList(q.Get("ids")) {
		id, err := parseID(raw, "ids")
		if err != nil {
			return reports.Request{}, err
		}
		req.Filter.IDs = append(req.Filter.IDs, id)
	}
	return req, nil
}

func parseFormat(r *http.Request) (reports.OutputFormat, error) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		return reports.OutputXLSX, nil
	}
	return reports.ParseOutputFormat(raw)
}

func parseAllowEmpty(r *http.Request) bool {
	allow, err := strconv.ParseBool(r.URL.Query().Get("allow_empty"))
	return err == nil && allow
}

func parseID(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", reports.ErrInvalidFilter, field)
	}
	return id, nil
}

func parseDate(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", reports.ErrInvalidFilter, field)
	}
	return t, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
