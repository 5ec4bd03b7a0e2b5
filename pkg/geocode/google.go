package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/projectmerge/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []struct {
		AddressComponents []googleComponent `json:"address_components"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type googleComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

func (c googleComponent) is(kind string) bool {
	for _, t := range c.Types {
		if t == kind {
			return true
		}
	}
	return false
}

// Google reverse geocodes via the Google Geocoding API. It does not
// resolve congressional districts.
type Google struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogle creates a Google provider.
func NewGoogle(apiKey string, hc *http.Client, limiter *rate.Limiter) *Google {
	return &Google{apiKey: apiKey, httpClient: hc, limiter: limiter}
}

// Name implements Provider.
func (p *Google) Name() string { return "google" }

// Reverse implements Provider.
func (p *Google) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	if p.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"latlng": {fmt.Sprintf("%f,%f", lat, lon)},
		"key":    {p.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleGeocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("google", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var gr googleGeocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &ReverseResult{Source: "google"}, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, resilience.NewTransientError(eris.Errorf("geocode: google status %s", gr.Status), 0)
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", gr.Status, gr.ErrorMessage)
	}

	res := &ReverseResult{Source: "google"}
	for _, r := range gr.Results {
		for _, c := range r.AddressComponents {
			switch {
			case res.State == "" && c.is("administrative_area_level_1"):
				res.State = c.ShortName
			case res.County == "" && c.is("administrative_area_level_2"):
				res.County = c.LongName
			case res.City == "" && c.is("locality"):
				res.City = c.LongName
			}
		}
	}
	res.Found = res.State != "" || res.County != "" || res.City != ""
	return res, nil
}
