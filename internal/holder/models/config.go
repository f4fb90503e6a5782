package models

import "time"

// RemoteConfiguration is the signed holder configuration published on the CDN.
type RemoteConfiguration struct {
	MinimumVersion               string `json:"androidMinimumVersion,omitempty"`
	RecoveryExpirationDays       int    `json:"recoveryExpirationDays"`
	TestEventValidityHours       int    `json:"testEventValidityHours"`
	VaccinationEventValidityDays int    `json:"vaccinationEventValidityDays"`
	ConfigTTLSeconds             int    `json:"configTTL"`
}

// TTL is how long the configuration may be used without refreshing it.
func (c RemoteConfiguration) TTL() time.Duration {
	return time.Duration(c.ConfigTTLSeconds) * time.Second
}
