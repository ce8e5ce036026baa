package models

import (
	"fmt"
	"strings"
	"time"
)

// AccountLabel names one of the two fixed partitions a user's data lives in.
type AccountLabel string

const (
	AccountDemo AccountLabel = "demo"
	AccountReal AccountLabel = "real"
)

// ParseAccountLabel accepts "demo" or "real" in any case.
func ParseAccountLabel(s string) (AccountLabel, error) {
	switch AccountLabel(strings.ToLower(strings.TrimSpace(s))) {
	case AccountDemo:
		return AccountDemo, nil
	case AccountReal:
		return AccountReal, nil
	}
	return "", fmt.Errorf("unknown account partition %q", s)
}

func (a AccountLabel) Valid() bool { return a == AccountDemo || a == AccountReal }

func (a AccountLabel) String() string { return string(a) }

// AccountBalance holds the starting-cash baseline of a partition.
type AccountBalance struct {
	AccountLabel AccountLabel `json:"account_label"`
	StartingCash float64      `json:"starting_cash"`
	UpdatedAt    time.Time    `json:"updated_at,omitempty"`
}
