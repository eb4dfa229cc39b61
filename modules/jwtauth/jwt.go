// Package jwtauth is a reference module issuing and verifying HS256 JWTs,
// grounded in the teacher's module/jwt_auth.go token issuing shape. A
// request is {"op": "issue", "subject": ..., "claims": {...}} or
// {"op": "verify", "token": "..."}.
package jwtauth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Config holds the module's signing parameters.
type Config struct {
	Secret      string
	Issuer      string
	TokenExpiry time.Duration
}

func configFromWith(setup protocol.ModuleSetup) Config {
	cfg := Config{Issuer: "phlow", TokenExpiry: time.Hour}
	if !setup.HasWith {
		return cfg
	}
	if v, ok := setup.With.Get("secret"); ok && v.IsString() {
		cfg.Secret = v.String()
	}
	if v, ok := setup.With.Get("issuer"); ok && v.IsString() {
		cfg.Issuer = v.String()
	}
	if v, ok := setup.With.Get("token_expiry_ms"); ok && v.IsInt() {
		cfg.TokenExpiry = time.Duration(v.Int()) * time.Millisecond
	}
	return cfg
}

// Factory registers the module's inbound channel and services issue/verify
// requests until the channel closes.
func Factory(ctx context.Context, setup protocol.ModuleSetup) {
	cfg := configFromWith(setup)
	inbound := make(chan protocol.ModulePackage)
	setup.SetupReply <- inbound

	for {
		select {
		case pkg, ok := <-inbound:
			if !ok {
				return
			}
			out := handle(cfg, pkg.Input)
			select {
			case pkg.Reply <- out:
			default:
				go func(p protocol.ModulePackage, v value.Value) { p.Reply <- v }(pkg, out)
			}
		case <-ctx.Done():
			return
		}
	}
}

func handle(cfg Config, input value.Value) value.Value {
	op, ok := input.Get("op")
	if !ok || !op.IsString() {
		return failure("missing field 'op'")
	}

	switch op.String() {
	case "issue":
		return issue(cfg, input)
	case "verify":
		return verify(cfg, input)
	default:
		return failure(fmt.Sprintf("invalid op %q", op.String()))
	}
}

func issue(cfg Config, input value.Value) value.Value {
	subjectVal, ok := input.Get("subject")
	if !ok {
		return failure("missing field 'subject'")
	}

	claims := jwt.MapClaims{
		"sub": subjectVal.String(),
		"iss": cfg.Issuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(cfg.TokenExpiry).Unix(),
	}
	if extra, ok := input.Get("claims"); ok && extra.IsObject() {
		for _, k := range extra.Keys() {
			v, _ := extra.Get(k)
			claims[k] = value.ToAny(v)
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return failure(err.Error())
	}
	return value.NewObject().Set("token", value.String(signed))
}

func verify(cfg Config, input value.Value) value.Value {
	tokenVal, ok := input.Get("token")
	if !ok || !tokenVal.IsString() {
		return failure("missing field 'token'")
	}

	parsed, err := jwt.Parse(tokenVal.String(), func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return value.NewObject().Set("valid", value.Bool(false)).Set("message", value.String(err.Error()))
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return value.NewObject().Set("valid", value.Bool(false))
	}
	return value.NewObject().Set("valid", value.Bool(true)).Set("claims", value.FromAny(map[string]any(claims)))
}

func failure(msg string) value.Value {
	return value.NewObject().Set("is_error", value.Bool(true)).Set("message", value.String(msg))
}
