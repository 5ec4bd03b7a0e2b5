package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/projectmerge/internal/resilience"
)

const (
	censusCoordinatesURL = "https://geocoding.geo.census.gov/geocoder/geographies/coordinates"
	censusBenchmark      = "Public_AR_Current"
	censusVintage        = "Current_Current"
)

// censusResponse is the JSON response from the Census coordinates API.
// Layer names vary by vintage, so geographies are decoded generically.
type censusResponse struct {
	Result struct {
		Geographies map[string][]map[string]any `json:"geographies"`
	} `json:"result"`
}

// Census reverse geocodes via the Census Geocoder geographies endpoint.
type Census struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewCensus creates a Census provider.
func NewCensus(hc *http.Client, limiter *rate.Limiter) *Census {
	return &Census{httpClient: hc, limiter: limiter}
}

// Name implements Provider.
func (p *Census) Name() string { return "census" }

// Reverse implements Provider.
func (p *Census) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit")
	}

	params := url.Values{
		"x":         {strconv.FormatFloat(lon, 'f', -1, 64)},
		"y":         {strconv.FormatFloat(lat, 'f', -1, 64)},
		"benchmark": {censusBenchmark},
		"vintage":   {censusVintage},
		"format":    {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, censusCoordinatesURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("census", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	var cr censusResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}
	return parseCensusGeographies(cr.Result.Geographies), nil
}

func parseCensusGeographies(geos map[string][]map[string]any) *ReverseResult {
	res := &ReverseResult{Source: "census"}

	if st := first(geos["States"]); st != nil {
		res.State = str(st, "STUSAB")
	}
	if co := first(geos["Counties"]); co != nil {
		res.County = str(co, "NAME")
	}
	if pl := first(geos["Incorporated Places"]); pl != nil {
		res.City = str(pl, "BASENAME")
	} else if pl := first(geos["Census Designated Places"]); pl != nil {
		res.City = str(pl, "BASENAME")
	}
	for layer, features := range geos {
		if !strings.HasSuffix(layer, "Congressional Districts") {
			continue
		}
		if cd := first(features); cd != nil {
			res.District = formatDistrict(res.State, districtCode(cd))
		}
		break
	}

	res.Found = res.State != "" || res.County != "" || res.City != ""
	return res
}

// districtCode finds the "CDnnn" field of a congressional district feature.
func districtCode(feature map[string]any) string {
	for k := range feature {
		if strings.HasPrefix(k, "CD") && len(k) > 2 {
			if _, err := strconv.Atoi(k[2:]); err == nil {
				return str(feature, k)
			}
		}
	}
	return str(feature, "BASENAME")
}

// formatDistrict renders "PA-03". At-large and delegate seats render as
// "AK-AL"; unassigned areas render empty.
func formatDistrict(state, code string) string {
	code = strings.TrimSpace(code)
	if state == "" || code == "" || strings.EqualFold(code, "ZZ") {
		return ""
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return ""
	}
	if n == 0 || n == 98 {
		return state + "-AL"
	}
	return fmt.Sprintf("%s-%02d", state, n)
}

func first(features []map[string]any) map[string]any {
	if len(features) == 0 {
		return nil
	}
	return features[0]
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// statusError marks retry-worthy statuses as transient so they count
// toward the provider's breaker.
func statusError(provider string, code int) error {
	err := eris.Errorf("geocode: %s returned status %d", provider, code)
	if resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return err
}
