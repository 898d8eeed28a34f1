package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// EdDSAVerifier checks session tokens against the Ed25519 keys in a KeySet.
type EdDSAVerifier struct {
	keys   *KeySet
	opts   VerifyOptions
	parser *jwt.Parser
}

func NewVerifierEdDSA(keys *KeySet, opts VerifyOptions) *EdDSAVerifier {
	return &EdDSAVerifier{
		keys: keys,
		opts: opts,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
			jwt.WithLeeway(opts.Leeway),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify checks signature, time window, issuer and audience, in that order.
func (v *EdDSAVerifier) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, v.lookupKey)
	if err != nil {
		return nil, translateParseError(err)
	}
	if !token.Valid {
		return nil, ErrNotVerified
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *EdDSAVerifier) lookupKey(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, ErrMissingKID
	}
	pub, err := v.keys.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}
	return pub, nil
}

// translateParseError maps jwt library errors onto this package's sentinels.
func translateParseError(err error) error {
	for _, m := range []struct{ from, to error }{
		{jwt.ErrTokenExpired, ErrExpired},
		{jwt.ErrTokenNotValidYet, ErrNotYetValid},
		{jwt.ErrTokenSignatureInvalid, ErrInvalidSig},
		{jwt.ErrTokenMalformed, ErrMalformed},
		{ErrMissingKID, ErrMissingKID},
		{ErrUnknownKID, ErrUnknownKID},
	} {
		if errors.Is(err, m.from) {
			return m.to
		}
	}
	return fmt.Errorf("jwtx: parse or verify: %w", err)
}
