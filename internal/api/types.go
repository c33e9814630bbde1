package api

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"
)

func decodePayload(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, out)
}

// envelope is the uniform response wrapper used by every endpoint.
type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	StatusCode int             `json:"status_code"`
}

// List is the paginated payload returned by collection endpoints.
type List[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// ListOptions selects a page of a collection.
type ListOptions struct {
	Page    int
	PerPage int
	Query   string
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(o.PerPage))
	}
	if o.Query != "" {
		v.Set("q", o.Query)
	}
	return v
}

// User is a customer account managed through the console.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Admin is a back-office operator account.
type Admin struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Loan is a loan application or active loan. Amounts are minor units.
type Loan struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	TermMonths int       `json:"term_months"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Card is an issued payment card; only the masked number ever reaches the console.
type Card struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	MaskedNumber string    `json:"masked_number"`
	Status       string    `json:"status"`
	ExpiresAt    string    `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Deposit is a term deposit product held by a user. Rate is basis points.
type Deposit struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	RateBps    int       `json:"rate_bps"`
	TermMonths int       `json:"term_months"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transaction is a ledger movement between two accounts. Amounts are minor units.
type Transaction struct {
	ID            string    `json:"id"`
	FromAccountID string    `json:"from_account_id"`
	ToAccountID   string    `json:"to_account_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// RBACRole groups permissions.
type RBACRole struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// RBACPermission is a fine-grained capability key.
type RBACPermission struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Description string `json:"description"`
}
