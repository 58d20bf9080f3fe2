package models

import "time"

// FinancialAccount is a bank account or credit card record from the account
// directory. The ledger core reads these only to label AccountBalance
// entries; master-data management lives outside the core.
type FinancialAccount struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Name      string      `json:"name"`
	Kind      AccountKind `json:"kind"`
	IsDefault bool        `json:"is_default"`
	CreatedAt time.Time   `json:"created_at"`
}
