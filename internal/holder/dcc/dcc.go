// Package dcc reads Digital COVID Certificates scanned in the paper flow and maps them onto
// the event mode they expand into.
package dcc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthwallet/internal/holder/models"
)

// DomesticIssuerCountry is the issuer code of certificates issued in the home country.
const DomesticIssuerCountry = "NL"

var (
	// ErrUnreadable is returned when the credential is not a decodable hcert.
	ErrUnreadable = errors.New("credential is not a readable hcert")
	// ErrUnknownType is returned when a certificate does not carry exactly one entry list.
	ErrUnknownType = errors.New("credential holds no single certificate type")
)

// Credential is a decoded hcert.
type Credential struct {
	CredentialVersion int         `json:"credentialVersion"`
	Issuer            string      `json:"issuer"`
	IssuedAt          int64       `json:"issuedAt"`
	ExpirationTime    int64       `json:"expirationTime"`
	Certificate       Certificate `json:"dcc"`
}

type Certificate struct {
	Version      string        `json:"ver"`
	DateOfBirth  string        `json:"dob"`
	Name         Name          `json:"nam"`
	Vaccinations []Vaccination `json:"v,omitempty"`
	Recoveries   []Recovery    `json:"r,omitempty"`
	Tests        []Test        `json:"t,omitempty"`
}

type Name struct {
	FamilyName             string `json:"fn"`
	FamilyNameStandardised string `json:"fnt"`
	GivenName              string `json:"gn"`
	GivenNameStandardised  string `json:"gnt"`
}

type Vaccination struct {
	DiseaseTargeted       string `json:"tg"`
	VaccineType           string `json:"vp"`
	MedicinalProduct      string `json:"mp"`
	Manufacturer          string `json:"ma"`
	DoseNumber            int    `json:"dn"`
	TotalDoses            int    `json:"sd"`
	Date                  string `json:"dt"`
	Country               string `json:"co"`
	Issuer                string `json:"is"`
	CertificateIdentifier string `json:"ci"`
}

type Recovery struct {
	DiseaseTargeted       string `json:"tg"`
	FirstPositiveTest     string `json:"fr"`
	Country               string `json:"co"`
	Issuer                string `json:"is"`
	ValidFrom             string `json:"df"`
	ValidUntil            string `json:"du"`
	CertificateIdentifier string `json:"ci"`
}

type Test struct {
	DiseaseTargeted       string `json:"tg"`
	TypeOfTest            string `json:"tt"`
	Name                  string `json:"nm,omitempty"`
	Manufacturer          string `json:"ma,omitempty"`
	SampleCollected       string `json:"sc"`
	Result                string `json:"tr"`
	TestCenter            string `json:"tc,omitempty"`
	Country               string `json:"co"`
	Issuer                string `json:"is"`
	CertificateIdentifier string `json:"ci"`
}

// Identity returns the holder as stated in the certificate.
func (c *Credential) Identity() models.Identity {
	return models.Identity{
		FirstName: c.Certificate.Name.GivenName,
		LastName:  c.Certificate.Name.FamilyName,
		BirthDate: c.Certificate.DateOfBirth,
	}
}

// IsForeign reports whether the certificate was issued abroad.
func (c *Credential) IsForeign() bool {
	return !strings.EqualFold(c.Issuer, DomesticIssuerCountry)
}

// EventDate returns the date of the certificate's entry.
func (c *Credential) EventDate() (time.Time, bool) {
	cert := c.Certificate
	switch {
	case len(cert.Vaccinations) > 0:
		return models.ParseISODate(cert.Vaccinations[0].Date)
	case len(cert.Recoveries) > 0:
		return models.ParseISODate(cert.Recoveries[0].FirstPositiveTest)
	case len(cert.Tests) > 0:
		return models.ParseISODate(cert.Tests[0].SampleCollected)
	default:
		return time.Time{}, false
	}
}

// ModeFor maps a decoded certificate onto the event mode it expands into. Every
// certificate with exactly one non-empty entry list has a mode.
func ModeFor(c *Credential) (models.EventMode, error) {
	if c == nil {
		return "", ErrUnknownType
	}
	cert := c.Certificate
	v, r, t := len(cert.Vaccinations) > 0, len(cert.Recoveries) > 0, len(cert.Tests) > 0
	switch {
	case v && !r && !t:
		return models.ModeVaccination, nil
	case r && !v && !t:
		return models.ModeRecovery, nil
	case t && !v && !r:
		return models.ModeTest, nil
	default:
		return "", ErrUnknownType
	}
}

// CredentialReader decodes scanned credentials.
type CredentialReader interface {
	ReadEuCredential(raw []byte) (*Credential, error)
	IsForeignDCC(raw []byte) bool
}

// JSONReader reads credentials already converted to hcert JSON by the scanning layer,
// either as plain JSON or base64-encoded.
type JSONReader struct{}

func NewJSONReader() *JSONReader {
	return &JSONReader{}
}

func (JSONReader) ReadEuCredential(raw []byte) (*Credential, error) {
	data := raw
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		decoded, err := base64.StdEncoding.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		data = decoded
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if c.Issuer == "" {
		return nil, fmt.Errorf("%w: missing issuer", ErrUnreadable)
	}
	return &c, nil
}

// IsForeignDCC reports false for unreadable credentials.
func (r JSONReader) IsForeignDCC(raw []byte) bool {
	c, err := r.ReadEuCredential(raw)
	if err != nil {
		return false
	}
	return c.IsForeign()
}

var _ CredentialReader = JSONReader{}

// RemoteEventFor wraps a scanned certificate into a provider-less remote event. The
// result has no signed response; it is stored unsigned.
func RemoteEventFor(reader CredentialReader, credential, couplingCode string) (models.RemoteEvent, *Credential, error) {
	c, err := reader.ReadEuCredential([]byte(credential))
	if err != nil {
		return models.RemoteEvent{}, nil, err
	}
	identity := c.Identity()
	remote := models.RemoteEvent{Wrapper: models.EventWrapper{
		ProtocolVersion:    "3.0",
		ProviderIdentifier: models.DCCProviderIdentifier,
		Status:             models.StatusComplete,
		Identity:           &identity,
		Events: []models.Event{{
			Unique:  uniqueFor(c),
			Payload: &models.DCC{Credential: credential, CouplingCode: couplingCode},
		}},
	}}
	return remote, c, nil
}

func uniqueFor(c *Credential) string {
	cert := c.Certificate
	switch {
	case len(cert.Vaccinations) > 0:
		return cert.Vaccinations[0].CertificateIdentifier
	case len(cert.Recoveries) > 0:
		return cert.Recoveries[0].CertificateIdentifier
	case len(cert.Tests) > 0:
		return cert.Tests[0].CertificateIdentifier
	default:
		return ""
	}
}
