package models

import "strings"

// AccessToken grants access to one provider's unomi and event endpoints.
type AccessToken struct {
	ProviderIdentifier string `json:"provider_identifier"`
	UnomiAccessToken   string `json:"unomi"`
	EventAccessToken   string `json:"event"`
}

// Provider is an event provider as published in the signed provider list.
type Provider struct {
	Identifier string   `json:"provider_identifier"`
	Name       string   `json:"name"`
	UnomiURL   string   `json:"unomi_url"`
	EventURL   string   `json:"event_url"`
	CMS        []string `json:"cms"`
	TLS        []string `json:"tls"`
	Usages     []string `json:"usage"`
}

// Supports reports whether the provider advertises the usage the mode needs.
func (p Provider) Supports(mode EventMode) bool {
	want := mode.ProviderUsage()
	if want == "" {
		return false
	}
	for _, u := range p.Usages {
		if strings.EqualFold(u, want) {
			return true
		}
	}
	return false
}

// MatchesToken compares provider identifiers case-insensitively.
func (p Provider) MatchesToken(token AccessToken) bool {
	return strings.EqualFold(p.Identifier, token.ProviderIdentifier)
}

// TestProvider is a commercial test provider reachable with a retrieval token.
type TestProvider struct {
	Identifier string   `json:"provider_identifier"`
	Name       string   `json:"name"`
	ResultURL  string   `json:"result_url"`
	CMS        []string `json:"cms"`
	TLS        []string `json:"tls"`
}

// ProviderList is the decoded payload of the provider configuration.
type ProviderList struct {
	EventProviders []Provider     `json:"eventProviders"`
	TestProviders  []TestProvider `json:"testProviders"`
}

// InformationAvailable is a provider's unomi answer.
type InformationAvailable struct {
	ProtocolVersion      string `json:"protocolVersion"`
	ProviderIdentifier   string `json:"providerIdentifier"`
	InformationAvailable bool   `json:"informationAvailable"`
}

// ServerResponse is the generic body servers send alongside an error status.
type ServerResponse struct {
	Status string `json:"status"`
	Code   int    `json:"code"`
}
