package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/techimanshu8/flipkart/pkg/model"
)

// 签发在外部认证服务，这里只做验签和身份提取
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(tokenStr string) (Actor, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, errors.Wrap(model.ErrForbidden, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, errors.Wrap(model.ErrForbidden, "invalid token claims")
	}

	userID, _ := claims["user_id"].(string)
	roleStr, _ := claims["role"].(string)
	role := model.Role(roleStr)
	if userID == "" || !role.Valid() {
		return Actor{}, errors.Wrap(model.ErrForbidden, "incomplete identity in token")
	}

	return Actor{ID: userID, Role: role}, nil
}
