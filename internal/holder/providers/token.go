package providers

import (
	"errors"
	"strings"

	"healthwallet/internal/holder/models"
)

// tokenAlphabet is the character set of retrieval tokens. The checksum is a Luhn mod N
// over this alphabet.
const tokenAlphabet = "BCFGJLQRSTUVXYZ23456789"

var (
	ErrMalformedToken  = errors.New("malformed retrieval token")
	ErrTokenChecksum   = errors.New("retrieval token checksum mismatch")
	ErrUnknownProvider = errors.New("unknown test provider")
)

// RequestToken is a parsed "<PROVIDER>-<TOKEN>-<CHECKSUM>" retrieval code handed out by a
// commercial test provider.
type RequestToken struct {
	ProviderIdentifier string
	Token              string
}

// ParseRequestToken parses and checksums a retrieval code. The checksum part is a check
// character followed by an optional version digit.
func ParseRequestToken(raw string) (RequestToken, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(raw)), "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || len(parts[2]) < 1 || len(parts[2]) > 2 {
		return RequestToken{}, ErrMalformedToken
	}
	provider, token, checksum := parts[0], parts[1], parts[2]
	for _, r := range token {
		if !strings.ContainsRune(tokenAlphabet, r) {
			return RequestToken{}, ErrMalformedToken
		}
	}
	if !luhnModNValid(token + checksum[:1]) {
		return RequestToken{}, ErrTokenChecksum
	}
	return RequestToken{ProviderIdentifier: provider, Token: token}, nil
}

// FindTestProvider returns the provider a token belongs to.
func FindTestProvider(list []models.TestProvider, token RequestToken) (models.TestProvider, error) {
	for _, p := range list {
		if strings.EqualFold(p.Identifier, token.ProviderIdentifier) {
			return p, nil
		}
	}
	return models.TestProvider{}, ErrUnknownProvider
}

func luhnModNValid(input string) bool {
	n := len(tokenAlphabet)
	factor := 1
	sum := 0
	for i := len(input) - 1; i >= 0; i-- {
		idx := strings.IndexByte(tokenAlphabet, input[i])
		if idx < 0 {
			return false
		}
		addend := factor * idx
		if factor == 2 {
			factor = 1
		} else {
			factor = 2
		}
		sum += addend/n + addend%n
	}
	return sum%n == 0
}
