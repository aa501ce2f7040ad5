package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/cnc-service/internal/model"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		Role:  "technician",
		Name:  " Tomas Tech ",
		Email: "tomas@cnc.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "tech-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParser_Parse(t *testing.T) {
	parser := NewParser(testSecret)
	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	principal, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, model.Principal{
		UserID:      "tech-1",
		Role:        model.RoleTechnician,
		DisplayName: "Tomas Tech",
		Email:       "tomas@cnc.test",
	}, principal)
}

func TestParser_Parse_AppRoleAndUserID(t *testing.T) {
	claims := validClaims()
	claims.Subject = ""
	claims.UserID = "admin-7"
	claims.Role = "authenticated"
	claims.AppRole = "admin"

	principal, err := NewParser(testSecret).Parse(sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims))
	require.NoError(t, err)
	assert.Equal(t, "admin-7", principal.UserID)
	assert.Equal(t, model.RoleAdmin, principal.Role)
}

func TestParser_Parse_Rejects(t *testing.T) {
	parser := NewParser(testSecret)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	noSubject := validClaims()
	noSubject.Subject = ""

	unknownRole := validClaims()
	unknownRole.Role = "owner"

	tests := []struct {
		name  string
		token string
	}{
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims())},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())},
		{"no subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{"unknown role", sign(t, jwt.SigningMethodHS256, []byte(testSecret), unknownRole)},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
