package inverter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/icodeforyou/pvsoiling/huawei"
	"github.com/icodeforyou/pvsoiling/solaredge"
	"github.com/icodeforyou/pvsoiling/types"
)

// Credentials is implemented by one type per provider. The unexported
// newClient method keeps the set closed to this package, a provider without
// a client constructor does not compile.
type Credentials interface {
	Provider() Provider
	// ExternalSiteID is the id the vendor uses for the plant.
	ExternalSiteID() string
	Validate() error
	newClient(logger *slog.Logger, opts Options, siteID string) types.InverterClient
}

type SolarEdgeCredentials struct {
	APIKey string `json:"api_key"`
	SiteID string `json:"site_id"`
}

func (c SolarEdgeCredentials) Provider() Provider     { return SolarEdge }
func (c SolarEdgeCredentials) ExternalSiteID() string { return c.SiteID }

func (c SolarEdgeCredentials) Validate() error {
	var errs FieldErrors
	if c.APIKey == "" {
		errs = append(errs, FieldError{Field: "api_key", Message: "is required"})
	}
	if c.SiteID == "" {
		errs = append(errs, FieldError{Field: "site_id", Message: "is required"})
	}
	return errs.orNil()
}

func (c SolarEdgeCredentials) newClient(logger *slog.Logger, opts Options, siteID string) types.InverterClient {
	return solaredge.New(logger, opts.SolarEdgeBaseURL, c.APIKey, siteID)
}

type HuaweiCredentials struct {
	Username    string `json:"username"`
	SystemCode  string `json:"system_code"`
	StationCode string `json:"station_code"`
}

func (c HuaweiCredentials) Provider() Provider     { return Huawei }
func (c HuaweiCredentials) ExternalSiteID() string { return c.StationCode }

func (c HuaweiCredentials) Validate() error {
	var errs FieldErrors
	if c.Username == "" {
		errs = append(errs, FieldError{Field: "username", Message: "is required"})
	}
	if c.SystemCode == "" {
		errs = append(errs, FieldError{Field: "system_code", Message: "is required"})
	}
	if c.StationCode == "" {
		errs = append(errs, FieldError{Field: "station_code", Message: "is required"})
	}
	return errs.orNil()
}

func (c HuaweiCredentials) newClient(logger *slog.Logger, opts Options, siteID string) types.InverterClient {
	return huawei.New(logger, opts.Huawei, c.Username, c.SystemCode, siteID)
}

// DecodeCredentials parses the credential JSON of a provider and validates it.
// This switch is the only place a provider is matched at runtime, every
// other provider specific call goes through the Credentials interface.
// A new provider must get a case here as well as an entry in Providers.
func DecodeCredentials(p Provider, data []byte) (Credentials, error) {
	var creds Credentials
	switch p {
	case SolarEdge:
		var c SolarEdgeCredentials
		if err := decodeStrict(data, &c); err != nil {
			return nil, err
		}
		creds = c
	case Huawei:
		var c HuaweiCredentials
		if err := decodeStrict(data, &c); err != nil {
			return nil, err
		}
		creds = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

// EncodeCredentials is the inverse of DecodeCredentials.
func EncodeCredentials(c Credentials) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("error marshaling %s credentials: %w", c.Provider(), err)
	}
	return data, nil
}

func decodeStrict(data []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return FieldErrors{{Field: "credentials", Message: err.Error()}}
	}
	return nil
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors are returned for credentials that can be rejected without
// calling the vendor.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	var b bytes.Buffer
	b.WriteString("invalid credentials:")
	for i, fe := range e {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s %s", fe.Field, fe.Message)
	}
	return b.String()
}

func (e FieldErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
