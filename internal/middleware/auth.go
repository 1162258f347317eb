package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// UserIDHeader carries the authenticated user id to handlers.
const UserIDHeader = "X-User-ID"

// JWTAuth verifies HMAC-signed bearer tokens minted by the identity service.
// issuer is enforced when non-empty.
func JWTAuth(secret, issuer string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(UserIDHeader)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
			if issuer != "" && !claims.VerifyIssuer(issuer, true) {
				logger.Warn("jwt issuer mismatch", zap.Any("iss", claims["iss"]))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			userID, ok := userIDClaim(claims)
			if !ok {
				logger.Warn("jwt without user_id claim")
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
			ctx.Request.Header.Set(UserIDHeader, strconv.FormatInt(userID, 10))

			next(ctx)
		}
	}
}

// userIDClaim accepts user_id as a JSON number or a numeric string.
func userIDClaim(claims jwt.MapClaims) (int64, bool) {
	switch v := claims["user_id"].(type) {
	case float64:
		id := int64(v)
		return id, id > 0 && float64(id) == v
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil && id > 0
	}
	return 0, false
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
