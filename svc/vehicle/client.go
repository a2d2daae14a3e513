package vehicle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Config holds the vehicle data provider settings.
type Config struct {
	APIURL      string        `env:"VEHICLE_API_URL" envDefault:"https://uk.api.vehicledataglobal.com/r2/lookup"`
	APIKey      string        `env:"VEHICLE_API_KEY"`
	PackageName string        `env:"VEHICLE_API_PACKAGE" envDefault:"dimensions"`
	Timeout     time.Duration `env:"VEHICLE_API_TIMEOUT" envDefault:"10s"`
}

// Unknown fills in a make or model the provider did not return.
const Unknown = "Unknown"

// Vehicle is what the provider knows about a registration.
type Vehicle struct {
	VRM        string
	Make       string
	Model      string
	BodyType   string
	Dimensions Dimensions
}

// Client calls the vehicle data provider's lookup endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	titler cases.Caser
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// NewClient creates a Client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.PackageName == "" {
		cfg.PackageName = "dimensions"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		titler: cases.Title(language.BritishEnglish),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type lookupResponse struct {
	ResponseInformation struct {
		StatusCode          int    `json:"StatusCode"`
		StatusMessage       string `json:"StatusMessage"`
		IsSuccessStatusCode bool   `json:"IsSuccessStatusCode"`
	} `json:"ResponseInformation"`
	Results struct {
		VehicleDetails struct {
			BodyType string `json:"BodyType"`
		} `json:"VehicleDetails"`
		ModelDetails struct {
			ModelIdentification struct {
				Make  string `json:"Make"`
				Model string `json:"Model"`
			} `json:"ModelIdentification"`
			Dimensions Dimensions `json:"Dimensions"`
		} `json:"ModelDetails"`
	} `json:"Results"`
}

// Lookup fetches the vehicle for a registration mark.
// Spaces are removed and the mark is upper-cased before the call.
func (c *Client) Lookup(ctx context.Context, vrm string) (Vehicle, error) {
	vrm = NormalizeVRM(vrm)
	if vrm == "" {
		return Vehicle{}, ErrVRMRequired
	}
	if c.cfg.APIKey == "" {
		return Vehicle{}, ErrNotConfigured
	}

	u, err := url.Parse(c.cfg.APIURL)
	if err != nil {
		return Vehicle{}, errors.Join(ErrLookupFailed, err)
	}
	q := u.Query()
	q.Set("ApiKey", c.cfg.APIKey)
	q.Set("PackageName", c.cfg.PackageName)
	q.Set("Vrm", vrm)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Vehicle{}, errors.Join(ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Vehicle{}, errors.Join(ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return Vehicle{}, fmt.Errorf("%w: provider status %d", ErrLookupFailed, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Vehicle{}, errors.Join(ErrLookupFailed, fmt.Errorf("decode response: %w", err))
	}

	ident := body.Results.ModelDetails.ModelIdentification
	return Vehicle{
		VRM:        vrm,
		Make:       c.display(ident.Make),
		Model:      c.display(ident.Model),
		BodyType:   body.Results.VehicleDetails.BodyType,
		Dimensions: body.Results.ModelDetails.Dimensions,
	}, nil
}

// display keeps the provider's casing. Only all lower-case values are title-cased,
// so marks like "BMW" and codes like "320D" survive.
func (c *Client) display(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	if s == strings.ToLower(s) {
		return c.titler.String(s)
	}
	return s
}

// NormalizeVRM strips whitespace and upper-cases a registration mark.
func NormalizeVRM(vrm string) string {
	return strings.ToUpper(strings.Join(strings.Fields(vrm), ""))
}
