package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/consign/pkg/cryptox"
	"github.com/aussiebroadwan/consign/pkg/jwtx"
)

// InitSigningKey loads the Ed25519 signing key from cfg.SigningKeyFile,
// creating it on first start, and returns the signer with a key set holding
// its public half. Without a key file the key lives only in memory and every
// session token dies with the process.
//
// The kid is the key's thumbprint so it is stable across restarts.
func InitSigningKey(cfg Config, logger *slog.Logger) (jwtx.Signer, *jwtx.KeySet, error) {
	pemKey, err := cryptox.LoadOrGenerateEd25519Key(cfg.SigningKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA("", pemKey)
	if err != nil {
		return nil, nil, err
	}
	if err := signer.Validate(); err != nil {
		return nil, nil, err
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, nil, err
	}

	kid := signer.KID()
	if cfg.SigningKeyFile == "" {
		logger.Warn("using an ephemeral signing key; sessions will not survive a restart", "kid", kid)
	} else {
		logger.Info("signing key loaded", "kid", kid, "path", cfg.SigningKeyFile)
	}

	return signer, keys, nil
}
