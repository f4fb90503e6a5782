package models

// PrepareIssueEnvelope is the signer's nonce for one issuance attempt.
type PrepareIssueEnvelope struct {
	Stoken              string `json:"stoken"`
	PrepareIssueMessage string `json:"prepareIssueMessage"`
}

// CredentialsRequest submits the stored events to the signer.
type CredentialsRequest struct {
	Events                 []SignedResponse `json:"events"`
	Stoken                 string           `json:"stoken"`
	IssueCommitmentMessage string           `json:"issueCommitmentMessage"`
}
