package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/consign/internal/idp/store"
	"github.com/aussiebroadwan/consign/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newOTPFixture(t)

	_, err := f.svc.RequestCode(ctx, "ada@example.com")
	require.NoError(t, err)

	hk := NewHousekeepingService(f.store, f.clock, slogx.Discard(), 0)
	require.Equal(t, 15*time.Minute, hk.Interval)

	hk.Cleanup(ctx)
	_, err = f.store.Challenges().GetChallengeByEmail(ctx, "ada@example.com")
	require.NoError(t, err, "live challenge must survive")

	f.clock.Advance(DefaultCodeTTL + time.Second)
	hk.Cleanup(ctx)
	_, err = f.store.Challenges().GetChallengeByEmail(ctx, "ada@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()
	f := newOTPFixture(t)

	hk := NewHousekeepingService(f.store, f.clock, slogx.Discard(), time.Hour)
	hk.Start()
	hk.Stop()
}
