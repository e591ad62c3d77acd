package domain

import "strings"

// TenantID scopes every read and write. It is always passed explicitly.
type TenantID string

func (t TenantID) Validate() error {
	if strings.TrimSpace(string(t)) == "" {
		return ErrTenantRequired
	}
	return nil
}

func (t TenantID) String() string {
	return string(t)
}
