package cqrs

// ---------- User queries ----------

// GetUserQuery fetches a single user by ID, subject to ownership check.
type GetUserQuery struct {
	UserID           string
	RequestingUserID string
}

// ---------- Account queries ----------

// GetAccountQuery fetches a single account by account number.
type GetAccountQuery struct {
	AccountNumber    string
	RequestingUserID string
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID string
}

// ---------- Transaction queries ----------

// GetTransactionQuery fetches a single transaction touching AccountNumber.
type GetTransactionQuery struct {
	TransactionID string
	AccountNumber string
	UserID        string
}

// ListTransactionsQuery fetches all transactions touching an account, newest first.
type ListTransactionsQuery struct {
	AccountNumber string
	UserID        string
	Limit         int
	Offset        int
}

// ListDebtRemindersQuery returns reminders where the user is creditor or debtor.
type ListDebtRemindersQuery struct {
	UserID string
}

// ---------- Interbank queries ----------

// LookupExternalAccountQuery asks another bank for an account holder's name.
type LookupExternalAccountQuery struct {
	BankCode      string
	AccountNumber string
}

// DescribeAccountQuery is an inbound account lookup from another bank.
type DescribeAccountQuery struct {
	AccountNumber  string
	CallerBankCode string
	Timestamp      string
	HMAC           string
}
