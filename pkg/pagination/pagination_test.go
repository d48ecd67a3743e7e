package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=10&offset=20", 10, 20},
		{"limit=0", 1, 0},
		{"limit=-5", 1, 0},
		{"limit=500", MaxLimit, 0},
		{"limit=abc&offset=xyz", DefaultLimit, 0},
		{"offset=-1", DefaultLimit, 0},
	}
	for _, tc := range cases {
		p := paramsFor(t, tc.query)
		if p.Limit != tc.wantLimit || p.Offset != tc.wantOffset {
			t.Errorf("%q: got limit=%d offset=%d, want limit=%d offset=%d",
				tc.query, p.Limit, p.Offset, tc.wantLimit, tc.wantOffset)
		}
	}
}
