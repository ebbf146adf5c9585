package models

import (
	"time"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by AuthService on register, login and refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
