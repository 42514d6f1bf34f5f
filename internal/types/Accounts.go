/*

This file contains the identity types shared by the vault, the strategy and their collaborators.

*/

package types

// Account identifies a depositor, a fee recipient or a privileged operator.
// Identities are opaque strings (bech32 addresses when deployed against a chain).
type Account string

// String returns the raw identity.
func (a Account) String() string {
	return string(a)
}

// IsZero reports whether the identity is unset.
func (a Account) IsZero() bool {
	return a == ""
}

// FeeRecipients holds where harvest fees are routed.
type FeeRecipients struct {
	Treasury        Account   `json:"treasury" yaml:"treasury"`                 // Receives the treasury share of every harvest
	PaymentSplitter Account   `json:"payment_splitter" yaml:"payment_splitter"` // Receives the strategist share and splits it off-chain
	Strategists     []Account `json:"strategists" yaml:"strategists"`           // Unique, non-empty while the strategy is active
}
