package models

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&BankAccount{},
		&BankTransaction{},
		&Receivable{},
		&PaymentAllocation{},
		&ReviewItem{},
		&MatchAuditLog{},
		&ReconciliationRun{},
	}
}
