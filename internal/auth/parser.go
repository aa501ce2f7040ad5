package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nurpe/cnc-service/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims issued by the identity provider. The application role may arrive as
// "role" or, when the provider reserves that claim, as "app_role".
type Claims struct {
	UserID  string `json:"user_id,omitempty"`
	Role    string `json:"role,omitempty"`
	AppRole string `json:"app_role,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
	parser *jwt.Parser
}

func NewParser(secret string) *Parser {
	return &Parser{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (p *Parser) Parse(tokenString string) (model.Principal, error) {
	claims := &Claims{}
	_, err := p.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if strings.TrimSpace(userID) == "" {
		return model.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	rawRole := claims.AppRole
	if rawRole == "" {
		rawRole = claims.Role
	}
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return model.Principal{
		UserID:      userID,
		Role:        role,
		DisplayName: strings.TrimSpace(claims.Name),
		Email:       strings.TrimSpace(claims.Email),
	}, nil
}
