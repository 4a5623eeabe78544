package auth

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	HeaderAuthentication string = "header"
	NoneAuthentication   string = "none"
)

func NewAuthenticator(authenticationType string) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authenticationType)

	switch authenticationType {
	case HeaderAuthentication:
		return NewHeaderAuthenticator(DefaultUserHeader), nil
	case NoneAuthentication, "":
		return NewNoneAuthenticator()
	default:
		return nil, fmt.Errorf("unknown authentication type %q", authenticationType)
	}
}
